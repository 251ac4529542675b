// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jba/tight"
)

func runTight(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String() + stderr.String()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCompressDecompressFiles(t *testing.T) {
	t.Setenv("TIGHT_LOG_PRETTY", "false")
	dir := t.TempDir()
	in := filepath.Join(dir, "words.txt")
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog\n", 50))
	writeFile(t, in, data)

	for _, extra := range [][]string{nil, {"-D"}} {
		args := append(append([]string{"-f", "-t"}, extra...), in)
		if code, out := runTight(t, args...); code != 0 {
			t.Fatalf("%v: exit %d\n%s", args, code, out)
		}
		compressed := in + ".tight"
		if _, err := os.Stat(compressed); err != nil {
			t.Fatal(err)
		}
		restored := filepath.Join(dir, "restored.txt")
		if code, out := runTight(t, "-f", "-d", compressed, restored); code != 0 {
			t.Fatalf("decompress: exit %d\n%s", code, out)
		}
		got, err := os.ReadFile(restored)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%v: round trip changed the file", args)
		}
	}
}

func TestNoOverwrite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a")
	out := filepath.Join(dir, "b")
	writeFile(t, in, []byte("abc"))
	writeFile(t, out, []byte("keep"))
	if code, _ := runTight(t, in, out); code != int(tight.IoError) {
		t.Errorf("exit %d, want %d", code, tight.IoError)
	}
	if got, _ := os.ReadFile(out); string(got) != "keep" {
		t.Errorf("existing output was changed to %q", got)
	}
}

func TestFailureRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bogus.tight")
	out := filepath.Join(dir, "bogus")
	writeFile(t, in, []byte("this is not a compressed file"))
	if code, _ := runTight(t, "-d", in); code != int(tight.HeaderError) {
		t.Errorf("exit %d, want %d", code, tight.HeaderError)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output left behind: %v", err)
	}

	// Run-length mode is reserved.
	src := filepath.Join(dir, "src")
	writeFile(t, src, []byte("aaaa"))
	if code, _ := runTight(t, "-l", src); code != int(tight.CompressError) {
		t.Errorf("-l: exit %d, want %d", code, tight.CompressError)
	}
	if _, err := os.Stat(src + ".tight"); !os.IsNotExist(err) {
		t.Errorf("output left behind: %v", err)
	}
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"a", "b", "c"},
		{"-nosuchflag", "a"},
		{"-config", filepath.Join(t.TempDir(), "missing.yaml"), "a"},
	} {
		if code, _ := runTight(t, args...); code != exitUsage {
			t.Errorf("%q: exit %d, want %d", args, code, exitUsage)
		}
	}
	if code, _ := runTight(t, "-h"); code != 0 {
		t.Errorf("-h: exit %d", code)
	}
	if code, out := runTight(t, "-version"); code != 0 || !strings.Contains(out, "1.0.0") {
		t.Errorf("-version: exit %d, output %q", code, out)
	}
	if code, out := runTight(t, "-copyright"); code != 0 || !strings.Contains(out, "Copyright") {
		t.Errorf("-copyright: exit %d, output %q", code, out)
	}
}

func TestMetricsFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	prom := filepath.Join(dir, "tight.prom")
	writeFile(t, in, []byte("hello, hello"))
	t.Setenv("TIGHT_METRICS_FILE", prom)
	if code, out := runTight(t, in); code != 0 {
		t.Fatalf("exit %d\n%s", code, out)
	}
	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `tight_operations_total{op="compress",status="ok"} 1`) {
		t.Errorf("unexpected metrics:\n%s", data)
	}
}

func TestOutputName(t *testing.T) {
	for _, test := range []struct {
		in         string
		decompress bool
		want       string
	}{
		{"a.txt", false, "a.txt.tight"},
		{"a.txt.tight", true, "a.txt"},
		{"a.txt", true, "a.txt.out"},
		{".tight", true, ".tight.out"},
	} {
		if got := outputName(test.in, ".tight", test.decompress); got != test.want {
			t.Errorf("outputName(%q, %t) = %q, want %q", test.in, test.decompress, got, test.want)
		}
	}
}
