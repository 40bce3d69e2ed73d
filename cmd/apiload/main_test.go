package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loykin/apiload/internal/constants"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// execute runs the root command with args and resets flag state afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		reqOpts = requestOptions{timeout: constants.DefaultRequestTimeout, retries: 3}
		runOpts = runOptions{}
		historyLimit, historyRun = 10, ""
		openapiOutput, openapiValidate, openapiWatch = "text", false, false
		for _, name := range []string{"config", "env-file", "log-level"} {
			_ = rootCmd.PersistentFlags().Set(name, "")
		}
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	if testing.Verbose() && errOut.Len() > 0 {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

type fakeExitHandler struct {
	codes  []int
	logged []error
}

func (f *fakeExitHandler) Exit(code int) { f.codes = append(f.codes, code) }

func (f *fakeExitHandler) LogFatalError(err error, _ string, _ ...any) {
	f.logged = append(f.logged, err)
	f.Exit(ExitCode(err))
}

func TestFinish(t *testing.T) {
	h := &fakeExitHandler{}
	finish(h, nil)
	if len(h.codes) != 0 {
		t.Fatalf("nil error must not exit: %v", h.codes)
	}

	finish(h, &ExitCodeError{Code: ExitTasksFailed})
	if len(h.logged) != 0 || len(h.codes) != 1 || h.codes[0] != ExitTasksFailed {
		t.Fatalf("silent exit: codes=%v logged=%v", h.codes, h.logged)
	}

	finish(h, errors.New("boom"))
	if len(h.logged) != 1 || h.codes[1] != ExitError {
		t.Fatalf("generic error: codes=%v logged=%v", h.codes, h.logged)
	}
}

func TestExitCode(t *testing.T) {
	wrapped := &ExitCodeError{Code: ExitBadStatus, Err: errors.New("404")}
	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("x"), ExitError},
		{&ExitCodeError{Code: ExitTasksFailed}, ExitTasksFailed},
		{wrapped, ExitBadStatus},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
	if wrapped.Error() != "404" || (&ExitCodeError{Code: 3}).Error() != "exit status 3" {
		t.Fatalf("unexpected messages")
	}
}

func TestParseVars(t *testing.T) {
	got, err := parseVars([]string{"name=alice", " env = a=b "})
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "alice" || got["env"] != " a=b " {
		t.Fatalf("vars = %#v", got)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars([]string{bad}); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
