package nsscan

import "testing"

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"app/core.cljs":  "cljs",
		"deps.js":        "js",
		"Makefile":       "",
		"a.b.c.cljc":     "cljc",
		"trailing.dot.":  "",
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q)=%q want %q", in, got, want)
		}
	}
}

func TestGroupByExtension(t *testing.T) {
	groups := GroupByExtension([]string{"a.cljs", "b.cljs", "c.clj", "d"})
	if len(groups["cljs"]) != 2 || len(groups["clj"]) != 1 || len(groups[""]) != 1 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestExtractNamespace(t *testing.T) {
	src := []byte("(ns app.core\n  (:require [app.util :as u]))\n")
	name, ok := ExtractNamespace(src)
	if !ok || name != "app.core" {
		t.Fatalf("got name=%q ok=%v", name, ok)
	}
}

func TestExtractNamespaceMalformedIsNotOK(t *testing.T) {
	_, ok := ExtractNamespace([]byte("just some text, no ns form here"))
	if ok {
		t.Fatalf("expected malformed source to yield ok=false")
	}
}
