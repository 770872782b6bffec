package fileopen

import (
	"reflect"
	"testing"
)

// S5 — inbound file-open (emacsclient).
func TestArgvEmacsclient(t *testing.T) {
	got := Argv("emacsclient", "/p/x.cljs", 42)
	want := []string{"emacsclient", "-n", "+42", "/p/x.cljs"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestArgvOtherCommand(t *testing.T) {
	got := Argv("code", "/p/x.cljs", 10)
	want := []string{"code", "/p/x.cljs", "10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestOpenWithEmptyCommandIsNoop(t *testing.T) {
	Open("", "/p/x.cljs", 1) // must not panic or block
}
