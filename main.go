// Package main is the entry point for the FPU scheduler command
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lmittmann/tint"
	"github.com/samber/lo"

	"github.com/mrcode/fpu-scheduler/internal/app"
	"github.com/mrcode/fpu-scheduler/internal/chart"
	"github.com/mrcode/fpu-scheduler/internal/engine"
	"github.com/mrcode/fpu-scheduler/internal/models"
)

const sparklineHeight = 4

func main() {
	var (
		name         = flag.String("name", "Meal", "name of the portion")
		amount       = flag.Float64("amount", 0, "portion amount in grams")
		calories     = flag.Float64("calories", 0, "kcal per 100g")
		carbs        = flag.Float64("carbs", 0, "carbs per 100g")
		sugars       = flag.Float64("sugars", 0, "sugars per 100g")
		export       = flag.Bool("export", false, "send the schedule to Nightscout and MQTT")
		chartPath    = flag.String("chart", "", "write the schedule chart as PNG to this path")
		settingsPath = flag.String("settings", "", "settings file (default: config dir)")
	)
	flag.Parse()

	initLogger(os.Stderr)

	portion := models.Portion{
		Name:        *name,
		AmountGrams: *amount,
		Nutrition: models.Nutrition{
			CaloriesPer100g: *calories,
			CarbsPer100g:    *carbs,
			SugarsPer100g:   *sugars,
		},
	}

	if err := run(portion, *export, *chartPath, *settingsPath); err != nil {
		slog.Error("fpu-scheduler failed", "error", err)
		os.Exit(1)
	}
}

// initLogger installs a colored handler; FPU_LOG_LEVEL selects the level
func initLogger(w io.Writer) {
	level := slog.LevelInfo
	if v := os.Getenv("FPU_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}

	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

func run(portion models.Portion, export bool, chartPath, settingsPath string) error {
	application, err := app.New(settingsPath)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	result, err := application.Recalculate([]models.Portion{portion}, time.Now())
	if err != nil {
		return err
	}

	printSummary(os.Stdout, result)
	printFitting(os.Stdout, application.Fit(result))

	if chartPath != "" {
		png, err := application.RenderChart(result)
		if err != nil {
			return fmt.Errorf("rendering chart: %w", err)
		}
		if err := os.WriteFile(chartPath, png, 0600); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
		slog.Info("Wrote chart", "path", chartPath)
	}

	if export {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		batch, err := application.Export(ctx, result)
		if err != nil {
			return fmt.Errorf("exporting batch %s: %w", batch.ID, err)
		}
		fmt.Printf("\nExported %d entries (%.1fg) as batch %s\n",
			len(batch.Records), batch.TotalGrams(), batch.ID)
	}

	return nil
}

// printSummary writes the totals, stream parameters and one sparkline per stream
func printSummary(w io.Writer, result *engine.Result) {
	fmt.Fprintf(w, "FPU: %.1f  e-carbs: %.1fg  carbs: %.1fg  sugars: %.1fg  absorption: %s\n\n",
		result.Totals.Fpu, result.Totals.ExtendedCarbsGrams,
		result.Totals.CarbsGrams, result.Totals.SugarsGrams, result.AbsorptionLabel())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tTOTAL\tDELAY\tINTERVAL\tDURATION\tSTART\tEND")

	streams := map[models.CarbsEntryType]models.StreamParameters{
		models.Sugars:        result.Sugars,
		models.RegularCarbs:  result.RegularCarbs,
		models.ExtendedCarbs: result.ExtendedCarbs,
	}
	start := result.Regime.GlobalStart
	for _, t := range models.CarbsEntryTypes {
		p := streams[t]
		if !p.Active() {
			fmt.Fprintf(tw, "%s\t-\t\t\t\t\t\n", t.Label())
			continue
		}
		fmt.Fprintf(tw, "%s\t%.1fg\t%dm\t%dm\t%.0fm\t%s\t%s\n",
			t.Label(), p.TotalGrams, p.DelayMinutes, p.IntervalMinutes, p.WindowDurationMinutes,
			p.Start(start).Format("15:04"), p.End(start).Format("15:04"))
	}
	_ = tw.Flush()

	for _, t := range models.CarbsEntryTypes {
		values := lo.Map(result.Regime.Entries(t), func(e models.CarbsEntry, _ int) float64 {
			return e.ValueGrams
		})
		if lo.Max(values) <= 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n%s\n", t.Label(), indent(chart.Sparkline(values, sparklineHeight)))
	}
}

// printFitting reports how the chart scales the bars
func printFitting(w io.Writer, f chart.Fitting) {
	if f.Max <= 0 {
		return
	}
	fmt.Fprintf(w, "\nChart: %.1f-%.1fg, %.2f px/g", f.Min, f.Max, f.RegularMultiplier)
	if f.RequiresSplitting {
		fmt.Fprintf(w, ", bars under %.0f px raised and split", f.MinBarHeight)
	}
	fmt.Fprintln(w)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
