package browser

import "testing"

func TestSelectorString(t *testing.T) {
	tests := []struct {
		sel  Selector
		want string
	}{
		{ID("lblDeviceName"), "id=lblDeviceName"},
		{CSS("input[id='txtVariables']"), "css=input[id='txtVariables']"},
		{Text("UGML BF2 415V MCC"), `text="UGML BF2 415V MCC"`},
	}
	for _, tt := range tests {
		if got := tt.sel.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCSSFor(t *testing.T) {
	if got := cssFor(ID("PageContentHolder_btnApplyChanges")); got != `[id="PageContentHolder_btnApplyChanges"]` {
		t.Errorf("cssFor(ID) = %s", got)
	}
	if got := cssFor(CSS("div.popup > span")); got != "div.popup > span" {
		t.Errorf("cssFor(CSS) = %s", got)
	}
}
