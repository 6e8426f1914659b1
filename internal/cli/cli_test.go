package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpattn/auditdesk/internal/ingestion"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", t.TempDir(), "--log-level", "error"}, args...))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestImportCheckReportsRowErrors(t *testing.T) {
	path := writeTemp(t, "facilities.csv", "venue_name,postcode\nA,3000\n,3001\n")
	errorsOut := filepath.Join(t.TempDir(), "errors.csv")

	out, err := execute(t, "import", "--check", "--errors-out", errorsOut, path)
	if !errors.Is(err, ErrRowsFailed) {
		t.Fatalf("expected ErrRowsFailed, got %v", err)
	}

	var result ingestion.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if result.Created != 1 || len(result.Errors) != 1 || result.Errors[0].Row != 3 {
		t.Fatalf("unexpected result %+v", result)
	}

	report, err := os.ReadFile(errorsOut)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(report), "row,error\n3,venue_name is required") {
		t.Fatalf("unexpected report %q", report)
	}
}

func TestImportCheckCleanFile(t *testing.T) {
	path := writeTemp(t, "facilities.csv", "venue_name\nA\nB\n")
	out, err := execute(t, "import", "--check", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, `"created": 2`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestImportCheckParseFailure(t *testing.T) {
	path := writeTemp(t, "facilities.pdf", "%PDF")
	out, err := execute(t, "import", "--check", path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(out, ingestion.ParseFailureMessage) {
		t.Fatalf("expected parse failure row in output, got %q", out)
	}
}

func TestImportRequiresActorOutsideCheck(t *testing.T) {
	if _, err := execute(t, "import", "--questionnaire", "nope", "x.csv"); err == nil || !strings.Contains(err.Error(), "--questionnaire") {
		t.Fatalf("expected questionnaire id error, got %v", err)
	}
}

func TestMigrateDownRejectsNonPositiveSteps(t *testing.T) {
	if _, err := execute(t, "migrate", "down", "--steps", "0"); err == nil {
		t.Fatal("expected error for zero steps")
	}
}
