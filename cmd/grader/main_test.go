package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/Mirai3103/remote-grader/internal/models"
)

type fixtureTree struct {
	settings string
	document string
	root     string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// newTree lays out a command-backend run where alice passes, bob answers
// wrong and carol fails setup.
func newTree(t *testing.T) fixtureTree {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tests", "one.in"), "1\n")
	writeFile(t, filepath.Join(root, "tests", "one.out"), "2\n")
	writeFile(t, filepath.Join(root, "tests", "two.in"), "2\n")
	writeFile(t, filepath.Join(root, "tests", "two.out"), "3\n")
	writeFile(t, filepath.Join(root, "subs", "alice", "main.sh"), "read n\necho $((n + 1))\n")
	writeFile(t, filepath.Join(root, "subs", "alice", "ok"), "")
	writeFile(t, filepath.Join(root, "subs", "bob", "main.sh"), "echo 0\n")
	writeFile(t, filepath.Join(root, "subs", "bob", "ok"), "")
	writeFile(t, filepath.Join(root, "subs", "carol", "main.sh"), "echo 0\n")

	document := filepath.Join(root, "increment.toml")
	writeFile(t, document, fmt.Sprintf(`[command]
name = "increment"
tests_dir = %q
target_dir = %q
timeout = 5
setup = "sh -c 'test -f {submission_dir}/ok'"
run = "sh {submission_dir}/main.sh"
`, filepath.Join(root, "tests"), filepath.Join(root, "subs")))

	settings := filepath.Join(root, "grader.yaml")
	writeFile(t, settings, "log:\n  level: error\nrunner:\n  maxConcurrentJobs: 2\n")
	return fixtureTree{settings: settings, document: document, root: root}
}

func TestRunRendersCSV(t *testing.T) {
	tree := newTree(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--settings", tree.settings, "-o", "csv", tree.document}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	want := "Name,Passed,Total,one,two\n" +
		"alice,2,2,\" \",\" \"\n" +
		"bob,0,2,F,F\n" +
		"carol,0,2,C,C\n"
	if stdout.String() != want {
		t.Fatalf("unexpected report:\n%q\nwant:\n%q", stdout.String(), want)
	}
}

func TestRunUsageErrors(t *testing.T) {
	tree := newTree(t)
	cases := []struct {
		name string
		args []string
	}{
		{"no document", []string{"--settings", tree.settings}},
		{"two documents", []string{"--settings", tree.settings, tree.document, tree.document}},
		{"unknown flag", []string{"--bogus", tree.document}},
		{"unknown output", []string{"--settings", tree.settings, "-o", "xml", tree.document}},
		{"missing settings", []string{"--settings", filepath.Join(tree.root, "absent.yaml"), tree.document}},
		{"missing document", []string{"--settings", tree.settings, filepath.Join(tree.root, "absent.toml")}},
		{"serve without nats", []string{"--settings", tree.settings, "--serve"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tc.args, &stdout, &stderr); code != exitUsage {
				t.Fatalf("expected exit %d, got %d (%s)", exitUsage, code, stderr.String())
			}
		})
	}
}

func TestRunInvalidDocumentNamesField(t *testing.T) {
	tree := newTree(t)
	bad := filepath.Join(tree.root, "bad.toml")
	writeFile(t, bad, "[python]\nname = \"x\"\ntests_dir = \"t\"\ntarget_dir = \"d\"\n")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--settings", tree.settings, bad}, &stdout, &stderr); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
	if !strings.Contains(stderr.String(), "file") {
		t.Fatalf("error should name the missing field: %s", stderr.String())
	}
}

func TestRunMissingTargetIsFatal(t *testing.T) {
	tree := newTree(t)
	if err := os.RemoveAll(filepath.Join(tree.root, "subs")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--settings", tree.settings, tree.document}, &stdout, &stderr); code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if stdout.Len() != 0 {
		t.Fatalf("no report expected on fatal error, got %s", stdout.String())
	}
}

func TestRunPublishesToNATS(t *testing.T) {
	tree := newTree(t)
	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatalf("nats server not ready")
	}
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	sub, err := nc.SubscribeSync("grading.result")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	var stdout, stderr bytes.Buffer
	args := []string{"--settings", tree.settings, "--nats-url", srv.ClientURL(), "-o", "plain", tree.document}
	if code := run(context.Background(), args, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}

	runIDs := map[string]bool{}
	students := map[string]models.StudentReport{}
	for i := 0; i < 3; i++ {
		msg, err := sub.NextMsg(2 * time.Second)
		if err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
		var r models.StudentReport
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		runIDs[r.RunID] = true
		students[r.Student] = r
	}
	if len(runIDs) != 1 {
		t.Fatalf("all reports must share one run id: %v", runIDs)
	}
	if students["alice"].Passed != 2 || students["carol"].Results["one"].Status != models.CompileError {
		t.Fatalf("unexpected reports: %+v", students)
	}
}
