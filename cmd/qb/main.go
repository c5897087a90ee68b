// qb is the admin CLI for a running twin-qwikbasket.
//
// Usage:
//
//	qb status                     Health check and runtime config
//	qb reset                      Restore seed data and clear faults
//	qb seed <file>                Replace state with a JSON file
//	qb state                      Print the full state
//	qb summary                    Print dashboard counts
//	qb grouped                    Print sub-categories grouped by parent
//	qb list <resource> [query]    List a collection, optionally filtered
//	qb verify <customer-id>       Mark a customer verified
//	qb fault <op> [count]         Fail the next count calls of an operation
//	qb clear <op>                 Remove an operation fault
//	qb config [key=value ...]     Show or update runtime config
//	qb login <phone>              Run the OTP login and print the token
//	qb test [dir]                 Run YAML/JSON scenarios (default ./scenarios)
//
// The twin URL comes from --url or QB_URL (default http://localhost:8080);
// a session token from --token or QB_TOKEN.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/client"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/console"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/scenario"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const defaultURL = "http://localhost:8080"

func main() {
	cmd, args, baseURL, token := parseArgs()

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}
	if cmd == "version" || cmd == "--version" || cmd == "-v" {
		fmt.Printf("qb version %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cl := client.New(baseURL,
		client.WithToken(token),
		client.WithRetries(2, 200*time.Millisecond),
		client.WithLogger(logger),
	)

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(ctx, cl, baseURL)
	case "reset":
		err = cmdReset(ctx, cl)
	case "seed":
		err = cmdSeed(ctx, cl, args)
	case "state":
		err = cmdState(ctx, cl)
	case "summary":
		err = cmdSummary(ctx, cl)
	case "grouped":
		err = cmdGrouped(ctx, cl)
	case "list":
		err = cmdList(ctx, cl, logger, args)
	case "verify":
		err = cmdVerify(ctx, cl, args)
	case "fault":
		err = cmdFault(ctx, cl, args)
	case "clear":
		err = cmdClear(ctx, cl, args)
	case "config":
		err = cmdConfig(ctx, cl, args)
	case "login":
		err = cmdLogin(ctx, cl, args)
	case "test":
		err = cmdTest(ctx, baseURL, args)
	default:
		fmt.Fprintf(os.Stderr, "qb: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "qb: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs extracts the subcommand, positional args, --url and --token.
func parseArgs() (command string, args []string, baseURL, token string) {
	baseURL = defaultURL
	if u := os.Getenv("QB_URL"); u != "" {
		baseURL = u
	}
	token = os.Getenv("QB_TOKEN")

	raw := os.Args[1:]
	var filtered []string
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == "--url" && i+1 < len(raw):
			baseURL = raw[i+1]
			i++
		case raw[i] == "--token" && i+1 < len(raw):
			token = raw[i+1]
			i++
		default:
			filtered = append(filtered, raw[i])
		}
	}

	if len(filtered) == 0 {
		return "", nil, baseURL, token
	}
	return filtered[0], filtered[1:], baseURL, token
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: qb [--url URL] [--token TOKEN] <command> [args]

Commands:
  status                     Health check and runtime config
  reset                      Restore seed data and clear faults
  seed <file>                Replace state with a JSON file
  state                      Print the full state
  summary                    Print dashboard counts
  grouped                    Print sub-categories grouped by parent
  list <resource> [query]    List categories, subcategories, products,
                             orders, offers or customers
  verify <customer-id>       Mark a customer verified
  fault <op> [count]         Fail the next count calls of an operation,
                             e.g. products.update (0 = until cleared)
  clear <op>                 Remove an operation fault
  config [key=value ...]     Show or update runtime config
  login <phone>              Run the OTP login and print the token
  test [dir]                 Run YAML/JSON scenarios (default ./scenarios)
  version                    Print the qb version`)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// ---------------------------------------------------------------------------
// qb status
// ---------------------------------------------------------------------------

func cmdStatus(ctx context.Context, cl *client.Client, baseURL string) error {
	health := "healthy"
	if err := cl.Health(ctx); err != nil {
		health = "unhealthy"
		fmt.Printf("\n  %-8s %-11s %s\n\n", "TWIN", health, err)
		return nil
	}
	cfg, err := cl.Config(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %-20s %s\n", "URL", baseURL)
	fmt.Printf("  %-20s %s\n", "HEALTH", health)
	for _, k := range []string{"latency", "fail_rate", "verbose", "webhook_url", "require_session"} {
		if v, ok := cfg[k]; ok {
			fmt.Printf("  %-20s %v\n", strings.ToUpper(k), v)
		}
	}
	fmt.Println()
	return nil
}

// ---------------------------------------------------------------------------
// qb reset / seed / state
// ---------------------------------------------------------------------------

func cmdReset(ctx context.Context, cl *client.Client) error {
	if err := cl.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Println("Reset to seed data.")
	return nil
}

func cmdSeed(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qb seed <file>")
	}
	if err := cl.Seed(ctx, args[0]); err != nil {
		return fmt.Errorf("seeding from %s: %w", args[0], err)
	}
	fmt.Printf("Seeded from %s\n", args[0])
	return nil
}

func cmdState(ctx context.Context, cl *client.Client) error {
	raw, err := cl.State(ctx)
	if err != nil {
		return err
	}
	return printJSON(raw)
}

// ---------------------------------------------------------------------------
// qb summary / grouped
// ---------------------------------------------------------------------------

func cmdSummary(ctx context.Context, cl *client.Client) error {
	s, err := cl.Summary(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %-22s %d main, %d sub, %d on homepage\n", "CATEGORIES", s.Categories.MainCategories, s.Categories.SubCategories, s.Categories.HomepageItems)
	fmt.Printf("  %-22s %d total, %d low stock, %d out of stock\n", "PRODUCTS",
		s.Products.Total, s.Products.LowStock, s.Products.OutOfStock)
	fmt.Printf("  %-22s %s\n", "INVENTORY VALUE", s.Products.TotalInventoryValue.StringFixed(2))
	fmt.Printf("  %-22s %d total, %d pending, %d in transit, %d delivered\n", "ORDERS",
		s.Orders.Total, s.Orders.Pending, s.Orders.InTransit, s.Orders.Delivered)
	fmt.Printf("  %-22s %d total, %d active\n", "OFFERS", s.Offers.Total, s.Offers.Active)
	fmt.Printf("  %-22s %d total, %d verified, %d pending\n", "CUSTOMERS",
		s.Customers.Total, s.Customers.Verified, s.Customers.Pending)
	fmt.Println()
	return nil
}

func cmdGrouped(ctx context.Context, cl *client.Client) error {
	groups, err := cl.Grouped(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		fmt.Printf("%s (%d)\n", g.Parent, len(g.SubCategories))
		for _, sc := range g.SubCategories {
			fmt.Printf("  %-6s %s\n", sc.ID, sc.Name)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// qb list <resource> [query]
// ---------------------------------------------------------------------------

func cmdList(ctx context.Context, cl *client.Client, logger *slog.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qb list <resource> [query]")
	}
	query := strings.Join(args[1:], " ")

	switch args[0] {
	case "categories":
		return listScreen(ctx, console.CategoryScreen(cl.Categories(), logger), query)
	case "subcategories":
		return listScreen(ctx, console.SubCategoryScreen(cl.SubCategories(), logger), query)
	case "products":
		return listScreen(ctx, console.ProductScreen(cl.Products(), logger), query)
	case "orders":
		return listScreen(ctx, console.OrderScreen(cl.Orders(), logger), query)
	case "offers":
		return listScreen(ctx, console.OfferScreen(cl.Offers(), logger), query)
	case "customers":
		return listScreen(ctx, console.CustomerScreen(cl.Customers(), logger), query)
	default:
		return fmt.Errorf("unknown resource %q (expected categories, subcategories, products, orders, offers, or customers)", args[0])
	}
}

// listScreen loads a screen once, applies the search query and prints
// the visible rows.
func listScreen[T any](ctx context.Context, s *console.Screen[T], query string) error {
	defer s.Close()
	if err := s.Activate(ctx); err != nil {
		return err
	}
	s.SetQuery(query)
	return printJSON(s.Visible())
}

// ---------------------------------------------------------------------------
// qb verify <customer-id>
// ---------------------------------------------------------------------------

func cmdVerify(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qb verify <customer-id>")
	}
	c, err := cl.Customers().Verify(ctx, args[0])
	if err != nil {
		return fmt.Errorf("verifying %s: %w", args[0], err)
	}
	fmt.Printf("%s (%s) is now %s\n", c.BusinessName, c.ID, c.Status)
	return nil
}

// ---------------------------------------------------------------------------
// qb fault / clear
// ---------------------------------------------------------------------------

func cmdFault(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qb fault <op> [count]")
	}
	count := 1
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("count must be a non-negative integer, got %q", args[1])
		}
		count = n
	}
	if err := cl.InjectOpFault(ctx, args[0], count); err != nil {
		return err
	}
	if count == 0 {
		fmt.Printf("%s fails until cleared\n", args[0])
	} else {
		fmt.Printf("%s fails the next %d call(s)\n", args[0], count)
	}
	return nil
}

func cmdClear(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qb clear <op>")
	}
	if err := cl.ClearOpFault(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("%s cleared\n", args[0])
	return nil
}

// ---------------------------------------------------------------------------
// qb config [key=value ...]
// ---------------------------------------------------------------------------

func cmdConfig(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) == 0 {
		cfg, err := cl.Config(ctx)
		if err != nil {
			return err
		}
		return printJSON(cfg)
	}

	updates := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", a)
		}
		updates[k] = configValue(v)
	}
	cfg, err := cl.UpdateConfig(ctx, updates)
	if err != nil {
		return err
	}
	return printJSON(cfg)
}

// configValue turns a command-line value into the JSON type the twin
// expects: booleans and numbers are sent as such, anything else (durations,
// URLs) as a string.
func configValue(v string) any {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

// ---------------------------------------------------------------------------
// qb login <phone>
// ---------------------------------------------------------------------------

func cmdLogin(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qb login <phone>")
	}
	phone := args[0]
	if err := cl.RequestOTP(ctx, phone); err != nil {
		return fmt.Errorf("requesting code: %w", err)
	}
	codes, err := cl.OTPCodes(ctx, phone)
	if err != nil {
		return fmt.Errorf("reading code: %w", err)
	}
	if len(codes) == 0 {
		return fmt.Errorf("no pending code for %s", phone)
	}
	token, err := cl.VerifyOTP(ctx, phone, codes[len(codes)-1].Code)
	if err != nil {
		return fmt.Errorf("verifying code: %w", err)
	}
	fmt.Println(token)
	return nil
}

// ---------------------------------------------------------------------------
// qb test [dir]
// ---------------------------------------------------------------------------

func cmdTest(ctx context.Context, baseURL string, args []string) error {
	dir := "scenarios"
	if len(args) >= 1 {
		dir = args[0]
	}
	scenarios, err := scenario.LoadDir(dir)
	if err != nil {
		return err
	}

	r := scenario.NewRunner(baseURL, nil)
	var passed, failed, steps int
	fmt.Println()
	for _, s := range scenarios {
		res, err := r.Run(ctx, s)
		if err != nil {
			fmt.Printf("  FAIL  %s\n        %v\n", s.Name, err)
			failed++
			continue
		}
		fmt.Printf("  %s  %s (%s)\n", passFailLabel(res.Passed), s.Name, res.Duration.Round(time.Millisecond))
		for _, st := range res.Steps {
			steps++
			if !st.Passed {
				fmt.Printf("        %s: %s\n", st.Name, st.Error)
			}
		}
		if res.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Printf("\n  %d passed, %d failed, %d steps\n\n", passed, failed, steps)
	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

func passFailLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
