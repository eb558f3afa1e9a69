package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"dealroom/pkg/authn"
	"dealroom/pkg/db"
	"dealroom/pkg/domain"
	"dealroom/pkg/webhooks"
)

const usage = "usage: dealctl catalog [--type <property_type>] | dealctl migrate | dealctl token issue --party <id> --token <token> | dealctl callback sign --body <path> [--secret <secret>]"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Getenv))
}

func run(args []string, out io.Writer, getenv func(string) string) int {
	if len(args) < 1 {
		failSummary(out, "", usage)
		return 2
	}
	switch args[0] {
	case "catalog":
		return runCatalog(args[1:], out)
	case "migrate":
		return runMigrate(out, getenv)
	case "token":
		if len(args) < 2 || args[1] != "issue" {
			failSummary(out, "token", usage)
			return 2
		}
		return runTokenIssue(args[2:], out, getenv)
	case "callback":
		if len(args) < 2 || args[1] != "sign" {
			failSummary(out, "callback", usage)
			return 2
		}
		return runCallbackSign(args[2:], out, getenv)
	default:
		failSummary(out, args[0], "unknown command")
		return 2
	}
}

// runCatalog prints the clause catalog for one property type, or the list of
// supported types.
func runCatalog(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	typ := fs.String("type", "", "property type")
	if err := fs.Parse(args); err != nil {
		failSummary(out, "catalog", err.Error())
		return 2
	}
	if strings.TrimSpace(*typ) == "" {
		return writeJSON(out, map[string]any{"status": "PASS", "property_types": domain.PropertyTypes()})
	}
	clauses, err := domain.CatalogClauses(domain.PropertyType(strings.TrimSpace(*typ)), time.Now())
	if err != nil {
		failSummary(out, "catalog", err.Error())
		return 1
	}
	return writeJSON(out, map[string]any{"status": "PASS", "property_type": *typ, "clauses": clauses})
}

func runMigrate(out io.Writer, getenv func(string) string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, db.Options{DSN: strings.TrimSpace(getenv("DATABASE_URL"))})
	if err != nil {
		failSummary(out, "migrate", err.Error())
		return 1
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		failSummary(out, "migrate", "migrate failed: "+err.Error())
		return 1
	}
	return writeJSON(out, map[string]any{"status": "PASS", "command": "migrate"})
}

func runTokenIssue(args []string, out io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("token issue", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	partyID := fs.String("party", "", "party id the token authenticates as")
	token := fs.String("token", "", "bearer token to register")
	if err := fs.Parse(args); err != nil {
		failSummary(out, "token issue", err.Error())
		return 2
	}
	if strings.TrimSpace(*partyID) == "" || strings.TrimSpace(*token) == "" {
		failSummary(out, "token issue", "both --party and --token are required")
		return 2
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, db.Options{DSN: strings.TrimSpace(getenv("DATABASE_URL"))})
	if err != nil {
		failSummary(out, "token issue", err.Error())
		return 1
	}
	defer pool.Close()
	if err := authn.IssueToken(ctx, pool, strings.TrimSpace(*partyID), strings.TrimSpace(*token)); err != nil {
		failSummary(out, "token issue", err.Error())
		return 1
	}
	return writeJSON(out, map[string]any{"status": "PASS", "command": "token issue", "party_id": *partyID})
}

// runCallbackSign prints the headers a closing service sends with a
// completion callback, for exercising the endpoint by hand.
func runCallbackSign(args []string, out io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("callback sign", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bodyPath := fs.String("body", "", "path to callback json body")
	secret := fs.String("secret", "", "shared secret (default CLOSING_CALLBACK_SECRET)")
	at := fs.Int64("at", 0, "unix timestamp to sign with (default now)")
	if err := fs.Parse(args); err != nil {
		failSummary(out, "callback sign", err.Error())
		return 2
	}
	if strings.TrimSpace(*secret) == "" {
		*secret = strings.TrimSpace(getenv("CLOSING_CALLBACK_SECRET"))
	}
	if strings.TrimSpace(*bodyPath) == "" || *secret == "" {
		failSummary(out, "callback sign", "--body and a secret are required")
		return 2
	}
	body, err := os.ReadFile(*bodyPath)
	if err != nil {
		failSummary(out, "callback sign", "read body failed: "+err.Error())
		return 1
	}
	if *at == 0 {
		*at = time.Now().Unix()
	}
	stamp := strconv.FormatInt(*at, 10)
	return writeJSON(out, map[string]any{
		"status": "PASS",
		"headers": map[string]string{
			webhooks.TimestampHeader: stamp,
			webhooks.SignatureHeader: hex.EncodeToString(webhooks.Sign(*secret, stamp, body)),
		},
	})
}

func writeJSON(out io.Writer, v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		failSummary(out, "", err.Error())
		return 1
	}
	fmt.Fprintln(out, string(b))
	return 0
}

func failSummary(out io.Writer, command, reason string) {
	b, _ := json.Marshal(map[string]any{
		"status":        "FAIL",
		"command":       command,
		"reason":        reason,
		"timestamp_utc": time.Now().UTC().Format(time.RFC3339),
	})
	fmt.Fprintln(out, string(b))
}
