package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
	pkgauth "github.com/matiasleandrokruk/calcatalog/pkg/auth"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// cleanEnv pins the configuration so the host environment cannot leak in.
func cleanEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CALCATALOG_MANIFEST_PATH", "")
	t.Setenv("CALCATALOG_JOURNAL_PATH", "")
	t.Setenv("CALCATALOG_LOG_LEVEL", "error")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CALCATALOG_ADMIN_PASSWORD_HASH", "")
}

func TestRun_Default_PrintsVersion(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "")
	if res.code != exitOK {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	if !strings.Contains(res.stdout, "calcatalog version") {
		t.Fatalf("expected version output, got %q", res.stdout)
	}
}

func TestRun_VersionFlagAndCommand(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"--version"}, {"version"}} {
		res := runCLI(t, "", args...)
		if res.code != exitOK || !strings.Contains(res.stdout, "calcatalog version") {
			t.Fatalf("%v: code=%d out=%q", args, res.code, res.stdout)
		}
	}
}

func TestRun_Help_PrintsUsage(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "--help")
	if res.code != exitOK {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	if !strings.Contains(res.stdout, "Usage:") || !strings.Contains(res.stdout, "serve") {
		t.Fatalf("expected help output, got %q", res.stdout)
	}
}

func TestRun_InvalidFlag_Returns2(t *testing.T) {
	t.Parallel()

	if res := runCLI(t, "", "--unknown-flag"); res.code != exitUsage {
		t.Fatalf("expected exit code 2, got %d", res.code)
	}
}

func TestRun_MissingArgument_Returns2(t *testing.T) {
	t.Parallel()

	if res := runCLI(t, "", "describe"); res.code != exitUsage {
		t.Fatalf("expected exit code 2, got %d (%s)", res.code, res.stderr)
	}
}

func TestList(t *testing.T) {
	cleanEnv(t)

	res := runCLI(t, "", "list")
	if res.code != exitOK {
		t.Fatalf("code=%d stderr=%s", res.code, res.stderr)
	}
	if !strings.HasPrefix(res.stdout, "ID") || !strings.Contains(res.stdout, "roi-calculator") {
		t.Fatalf("unexpected table: %q", res.stdout)
	}

	res = runCLI(t, "", "list", "--category", "health", "--json")
	var ds []calculator.Descriptor
	if err := json.Unmarshal([]byte(res.stdout), &ds); err != nil {
		t.Fatalf("decode: %v (%q)", err, res.stdout)
	}
	if len(ds) != 1 || ds[0].ID != "bmi-calculator" {
		t.Fatalf("unexpected health listing: %+v", ds)
	}
}

func TestSearch_RanksIDMatchFirst(t *testing.T) {
	cleanEnv(t)

	res := runCLI(t, "", "search", "roi", "--json")
	var ds []calculator.Descriptor
	if err := json.Unmarshal([]byte(res.stdout), &ds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ds) == 0 || ds[0].ID != "roi-calculator" {
		t.Fatalf("unexpected ranking: %+v", ds)
	}
}

func TestDescribe(t *testing.T) {
	cleanEnv(t)

	res := runCLI(t, "", "describe", "bmi-calculator")
	if res.code != exitOK || !strings.Contains(res.stdout, `"inputSchema"`) {
		t.Fatalf("code=%d out=%q", res.code, res.stdout)
	}
	if res := runCLI(t, "", "describe", "missing"); res.code != exitFailure {
		t.Fatalf("expected exit 1 for unknown id, got %d", res.code)
	}
}

func TestExec(t *testing.T) {
	cleanEnv(t)

	res := runCLI(t, "", "exec", "roi-calculator", "--input", `{"gain":150,"cost":100}`)
	if res.code != exitOK {
		t.Fatalf("code=%d out=%s stderr=%s", res.code, res.stdout, res.stderr)
	}
	var got calculator.Result
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.OK || got.Output.Result != 0.5 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestExec_FromStdin(t *testing.T) {
	cleanEnv(t)

	res := runCLI(t, `{"weight":70,"height":175}`, "exec", "bmi-calculator", "-f", "-")
	if res.code != exitOK || !strings.Contains(res.stdout, `"ok": true`) {
		t.Fatalf("code=%d out=%s", res.code, res.stdout)
	}
}

func TestExec_FailureExitsOne(t *testing.T) {
	cleanEnv(t)

	res := runCLI(t, "", "exec", "roi-calculator", "--input", `{"gain":150}`)
	if res.code != exitFailure {
		t.Fatalf("expected exit 1, got %d", res.code)
	}
	if !strings.Contains(res.stdout, string(calculator.KindValidation)) {
		t.Fatalf("expected the failed result on stdout, got %q", res.stdout)
	}
}

func TestExec_BadJSONIsUsageError(t *testing.T) {
	cleanEnv(t)

	if res := runCLI(t, "", "exec", "roi-calculator", "--input", `[1,2]`); res.code != exitUsage {
		t.Fatalf("expected exit 2, got %d", res.code)
	}
}

func TestAudit_PrintsJSONArray(t *testing.T) {
	cleanEnv(t)

	res := runCLI(t, "", "audit")
	var findings []calculator.AuditFinding
	if err := json.Unmarshal([]byte(res.stdout), &findings); err != nil {
		t.Fatalf("decode: %v (%q)", err, res.stdout)
	}
	found := false
	for _, f := range findings {
		if f.ID == "roi_calculator" || f.ID == "roi-calculator" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the roi slug variants to be reported: %+v", findings)
	}
}

func TestScriptedManifest(t *testing.T) {
	cleanEnv(t)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "calculators.yaml")
	doc := `
calculators:
  - id: square
    title: Square
    category: math
    inputs:
      - name: x
        type: number
        required: true
    script: |
      function compute(input) return input.x * input.x end
`
	if err := os.WriteFile(manifest, []byte(doc), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	t.Setenv("CALCATALOG_MANIFEST_PATH", manifest)

	res := runCLI(t, "", "exec", "square", "--input", `{"x":7}`)
	if res.code != exitOK || !strings.Contains(res.stdout, `"result": 49`) {
		t.Fatalf("code=%d out=%s stderr=%s", res.code, res.stdout, res.stderr)
	}
}

func TestTokenHash(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "s3cret\n", "token", "hash")
	if res.code != exitOK {
		t.Fatalf("code=%d stderr=%s", res.code, res.stderr)
	}
	if !pkgauth.VerifyPassword(strings.TrimSpace(res.stdout), "s3cret") {
		t.Fatalf("printed hash does not verify: %q", res.stdout)
	}

	if res := runCLI(t, "", "token", "hash"); res.code != exitUsage {
		t.Fatalf("expected exit 2 for empty password, got %d", res.code)
	}
}

func TestTokenIssue(t *testing.T) {
	cleanEnv(t)
	secret := "test-secret-key-32-chars-min!!!"
	t.Setenv("JWT_SECRET", secret)

	res := runCLI(t, "", "token", "issue")
	if res.code != exitOK {
		t.Fatalf("code=%d stderr=%s", res.code, res.stderr)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	issuer, err := pkgauth.NewIssuer(secret, 0)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	claims, err := issuer.Parse(body.Token)
	if err != nil || claims.Role != pkgauth.RoleAdmin {
		t.Fatalf("Parse() = %+v, %v", claims, err)
	}
}

func TestTokenIssue_RequiresSecret(t *testing.T) {
	cleanEnv(t)

	if res := runCLI(t, "", "token", "issue"); res.code != exitUsage {
		t.Fatalf("expected exit 2 without JWT_SECRET, got %d", res.code)
	}
}
