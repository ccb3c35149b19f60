// Command finsight is the command-line surface over the ledger: record
// and list transactions, inspect monthly aggregates, manage budgets and
// goals, and read the latest computed artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/cache"
	"finsight/internal/cli"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/predictor"
	"finsight/internal/services"
	"finsight/internal/storage"
)

const dateLayout = "2006-01-02"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
		}
	}

	aggregates := cache.NewAggregates(cfg.CacheMaxEntries, cfg.CacheTTL)
	predictorClient := predictor.NewClient(cfg.PredictorBaseURL, cfg.PredictorTimeout)

	app := &app{
		repo:         repo,
		transactions: services.NewTransactionService(repo, aggregates, predictorClient, events),
		analytics:    services.NewAnalyticsService(repo, aggregates),
		health:       services.NewHealthService(repo, predictorClient),
		forecasts:    services.NewForecastService(repo, predictorClient),
		goals:        services.NewGoalService(repo, predictorClient),
		insights:     services.NewInsightService(repo, predictorClient, predictorClient),
	}

	ctx := context.Background()
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	repo         *storage.SQLiteRepository
	transactions *services.TransactionService
	analytics    *services.AnalyticsService
	health       *services.HealthService
	forecasts    *services.ForecastService
	goals        *services.GoalService
	insights     *services.InsightService
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "add":
		return a.add(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "summary":
		return a.summary(ctx, args)
	case "breakdown":
		return a.breakdown(ctx, args)
	case "set-budget":
		return a.setBudget(ctx, args)
	case "goals":
		return a.listGoals(ctx, args)
	case "add-goal":
		return a.addGoal(ctx, args)
	case "goal-status":
		return a.goalStatus(ctx, args)
	case "goal-progress":
		return a.goalProgress(ctx, args)
	case "recommend":
		return a.recommend(ctx, args)
	case "anomalies":
		return a.anomalies(ctx, args)
	case "insights":
		return a.listInsights(ctx, args)
	case "health":
		return a.latestHealth(ctx, args)
	case "forecast":
		return a.latestForecast(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	direction := fs.String("direction", "expense", "income or expense")
	amount := fs.Float64("amount", 0, "amount in major units (required)")
	description := fs.String("desc", "", "description (required)")
	category := fs.String("category", "", "category; predicted when omitted")
	date := fs.String("date", time.Now().Format(dateLayout), "occurrence date (YYYY-MM-DD)")
	method := fs.String("method", "", "payment method")
	notes := fs.String("notes", "", "notes")
	tags := fs.String("tags", "", "comma-separated tags")
	fs.Parse(args)

	occurredOn, err := time.Parse(dateLayout, *date)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	if err := a.repo.SeedDefaultCategories(ctx, *owner); err != nil {
		return err
	}

	t := core.Transaction{
		Owner:         *owner,
		Direction:     core.Direction(*direction),
		Amount:        core.MoneyFromUnits(*amount),
		Description:   *description,
		Category:      *category,
		PaymentMethod: *method,
		OccurredOn:    occurredOn,
		Notes:         *notes,
		Tags:          splitTags(*tags),
	}
	if err := a.transactions.Create(ctx, &t); err != nil {
		return err
	}

	fmt.Printf("created %s  %s  %s  %.2f  %s (%s)\n",
		t.ID, t.OccurredOn.Format(dateLayout), t.Direction, t.Amount.Units(), t.Category, t.CategorySource)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	direction := fs.String("direction", "", "filter by direction")
	category := fs.String("category", "", "filter by category")
	from := fs.String("from", "", "inclusive start date")
	to := fs.String("to", "", "inclusive end date")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 50, "page size")
	fs.Parse(args)

	filter := storage.TransactionFilter{
		Direction: core.Direction(*direction),
		Category:  *category,
		Page:      *page,
		PageSize:  *size,
	}
	var err error
	if *from != "" {
		if filter.From, err = time.Parse(dateLayout, *from); err != nil {
			return fmt.Errorf("parse from: %w", err)
		}
	}
	if *to != "" {
		if filter.To, err = time.Parse(dateLayout, *to); err != nil {
			return fmt.Errorf("parse to: %w", err)
		}
	}

	result, err := a.transactions.List(ctx, *owner, filter)
	if err != nil {
		return err
	}

	for _, t := range result.Items {
		fmt.Printf("%s  %s  %-7s  %10.2f  %-20s  %s\n",
			t.ID, t.OccurredOn.Format(dateLayout), t.Direction, t.Amount.Units(), t.Category, t.Description)
	}
	fmt.Printf("page %d/%d, %d total\n", result.Page, result.TotalPages, result.TotalCount)
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	id := fs.String("id", "", "transaction id (required)")
	direction := fs.String("direction", "", "income or expense")
	amount := fs.Float64("amount", 0, "amount in major units")
	description := fs.String("desc", "", "description")
	category := fs.String("category", "", "category; re-predicted when set to empty")
	date := fs.String("date", "", "occurrence date (YYYY-MM-DD)")
	method := fs.String("method", "", "payment method")
	notes := fs.String("notes", "", "notes")
	tags := fs.String("tags", "", "comma-separated tags")
	fs.Parse(args)

	existing, err := a.transactions.Get(ctx, *owner, *id)
	if err != nil {
		return err
	}

	// Only flags given on the command line override the stored values.
	t := *existing
	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "direction":
			t.Direction = core.Direction(*direction)
		case "amount":
			t.Amount = core.MoneyFromUnits(*amount)
		case "desc":
			t.Description = *description
		case "category":
			t.Category = *category
		case "date":
			var perr error
			if t.OccurredOn, perr = time.Parse(dateLayout, *date); perr != nil {
				parseErr = fmt.Errorf("parse date: %w", perr)
			}
		case "method":
			t.PaymentMethod = *method
		case "notes":
			t.Notes = *notes
		case "tags":
			t.Tags = splitTags(*tags)
		}
	})
	if parseErr != nil {
		return parseErr
	}

	if err := a.transactions.Update(ctx, &t); err != nil {
		return err
	}
	fmt.Printf("updated %s  %s  %s  %.2f  %s (%s)\n",
		t.ID, t.OccurredOn.Format(dateLayout), t.Direction, t.Amount.Units(), t.Category, t.CategorySource)
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	id := fs.String("id", "", "transaction id (required)")
	fs.Parse(args)

	if err := a.transactions.Delete(ctx, *owner, *id); err != nil {
		return err
	}
	fmt.Println("deleted", *id)
	return nil
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	year, month := monthFlags(fs)
	fs.Parse(args)

	s, err := a.analytics.MonthlySummary(ctx, *owner, *year, *month)
	if err != nil {
		return err
	}
	fmt.Printf("%04d-%02d  income %.2f  expenses %.2f  savings %.2f (%.1f%%)  %d transactions\n",
		s.Year, s.Month, s.Income.Units(), s.Expenses.Units(), s.Savings.Units(), s.SavingsRate, s.TransactionCount)
	return nil
}

func (a *app) breakdown(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("breakdown", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	year, month := monthFlags(fs)
	fs.Parse(args)

	b, err := a.analytics.CategoryBreakdown(ctx, *owner, *year, *month)
	if err != nil {
		return err
	}
	for _, c := range b.Categories {
		line := fmt.Sprintf("%-20s  spent %10.2f", c.Category, c.Spent.Units())
		if c.Budgeted.Cents > 0 {
			line += fmt.Sprintf("  budgeted %10.2f  (%.1f%%)", c.Budgeted.Units(), c.Utilization)
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) setBudget(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-budget", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	category := fs.String("category", "", "category (required)")
	year, month := monthFlags(fs)
	amount := fs.Float64("amount", 0, "budgeted amount in major units")
	fs.Parse(args)

	return a.analytics.SetBudget(ctx, *owner, *category, *month, *year, core.MoneyFromUnits(*amount))
}

func (a *app) listGoals(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goals", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	status := fs.String("status", "", "filter by status")
	fs.Parse(args)

	goals, err := a.goals.List(ctx, *owner, core.GoalStatus(*status))
	if err != nil {
		return err
	}
	for _, g := range goals {
		fmt.Printf("%s  %-10s  %-15s  %6.1f%%  %.2f / %.2f  %s\n",
			g.ID, g.Status, g.Type, g.Progress, g.CurrentValue.Units(), g.TargetValue.Units(), g.Title)
	}
	return nil
}

func (a *app) addGoal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-goal", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	title := fs.String("title", "", "goal title (required)")
	description := fs.String("desc", "", "description")
	goalType := fs.String("type", string(core.GoalSpendingCap), "spending_cap, savings_target, category_limit or custom")
	category := fs.String("category", "", "category (category_limit goals)")
	target := fs.Float64("target", 0, "target value in major units (required)")
	period := fs.String("period", string(core.PeriodMonthly), "daily, weekly, monthly or yearly")
	start := fs.String("start", "", "window start (YYYY-MM-DD, required)")
	end := fs.String("end", "", "window end (YYYY-MM-DD, required)")
	fs.Parse(args)

	g := core.Goal{
		Owner:       *owner,
		Title:       *title,
		Description: *description,
		Type:        core.GoalType(*goalType),
		Category:    *category,
		TargetValue: core.MoneyFromUnits(*target),
		Period:      core.GoalPeriod(*period),
	}
	var err error
	if g.StartDate, err = time.Parse(dateLayout, *start); err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	if g.EndDate, err = time.Parse(dateLayout, *end); err != nil {
		return fmt.Errorf("parse end: %w", err)
	}

	if err := a.goals.Create(ctx, &g); err != nil {
		return err
	}
	fmt.Printf("created goal %s  %-15s  target %.2f  %s\n", g.ID, g.Type, g.TargetValue.Units(), g.Title)
	return nil
}

func (a *app) goalStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal-status", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	id := fs.String("id", "", "goal id (required)")
	status := fs.String("status", "", "active, paused, completed or failed (required)")
	fs.Parse(args)

	g, err := a.goals.SetStatus(ctx, *owner, *id, core.GoalStatus(*status))
	if err != nil {
		return err
	}
	fmt.Printf("%s  %-10s  %s\n", g.ID, g.Status, g.Title)
	return nil
}

func (a *app) goalProgress(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal-progress", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	id := fs.String("id", "", "goal id (required)")
	fs.Parse(args)

	g, err := a.goals.UpdateProgress(ctx, *owner, *id)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %-10s  %6.1f%%  %.2f / %.2f  %s\n",
		g.ID, g.Status, g.Progress, g.CurrentValue.Units(), g.TargetValue.Units(), g.Title)
	return nil
}

func (a *app) recommend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	fs.Parse(args)

	goals, err := a.goals.GenerateRecommendations(ctx, *owner)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		fmt.Println("no recommendations")
		return nil
	}
	for _, g := range goals {
		fmt.Printf("%s  %-15s  target %.2f  %s\n", g.ID, g.Type, g.TargetValue.Units(), g.Title)
		fmt.Println("  ", g.Reasoning)
	}
	return nil
}

func (a *app) anomalies(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("anomalies", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	fs.Parse(args)

	report, err := a.insights.DetectAnomalies(ctx, *owner)
	if err != nil {
		return err
	}
	fmt.Printf("risk %s, %d anomalies\n", report.RiskLevel, report.Total)
	for _, an := range report.Anomalies {
		fmt.Printf("  #%-4d  %-7s  score %.2f  %s\n", an.TransactionIndex, an.Severity, an.Score, an.Reason)
	}
	return nil
}

func (a *app) listInsights(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	fs.Parse(args)

	insights, err := a.insights.GenerateInsights(ctx, *owner)
	if err != nil {
		return err
	}
	if len(insights) == 0 {
		fmt.Println("no insights")
		return nil
	}
	for _, in := range insights {
		fmt.Printf("[%s] %s\n", in.Priority, in.Title)
		fmt.Println("  ", in.Message)
		for _, f := range in.Evidence {
			fmt.Printf("    %s = %v  (%s)\n", f.Metric, f.Value, f.Explanation)
		}
	}
	return nil
}

func (a *app) latestHealth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	fs.Parse(args)

	record, err := a.health.Latest(ctx, *owner)
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Println("not yet computed")
		return nil
	}
	fmt.Printf("score %.1f/100 (computed %s)\n", record.OverallScore, record.ComputedAt.Format(time.RFC3339))
	for name, sub := range record.SubScores {
		fmt.Printf("  %-22s %6.1f  (weight %.2f)\n", name, sub.Score, sub.Weight)
	}
	fmt.Println(record.Explanation)
	return nil
}

func (a *app) latestForecast(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id (required)")
	horizon := fs.String("horizon", string(core.Horizon30Day), "7day, 14day or 30day")
	fs.Parse(args)

	record, err := a.forecasts.Latest(ctx, *owner, core.Horizon(*horizon))
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Println("not yet computed")
		return nil
	}
	fmt.Printf("%s forecast, risk %s (%.1f), computed %s\n",
		record.Horizon, record.RiskIndicator, record.RiskScore, record.ComputedAt.Format(time.RFC3339))
	for _, p := range record.Predictions {
		fmt.Printf("  %s  %10.2f  [%10.2f, %10.2f]  conf %.2f\n",
			p.Date.Format(dateLayout), p.PredictedAmount, p.LowerBound, p.UpperBound, p.Confidence)
	}
	return nil
}

func monthFlags(fs *flag.FlagSet) (*int, *int) {
	now := time.Now()
	year := fs.Int("year", now.Year(), "year")
	month := fs.Int("month", int(now.Month()), "month (1-12)")
	return year, month
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: finsight <command> [flags]

commands:
  add            record a transaction
  list           list transactions
  update         update a transaction
  delete         delete a transaction
  summary        monthly income/expense summary
  breakdown      per-category expense breakdown
  set-budget     set a category's monthly budget
  goals          list goals
  add-goal       create a goal
  goal-status    pause, resume or close a goal
  goal-progress  recompute a goal's progress
  recommend      generate recommended goals
  anomalies      detect unusual transactions
  insights       generate spending insights
  health         latest health score
  forecast       latest forecast for a horizon

run 'finsight <command> -h' for flags`)
}
