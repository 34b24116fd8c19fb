// Command dropout trains and serves university dropout prediction models.
//
// Usage:
//
//	dropout train   -config experiment.hcl
//	dropout evaluate -bundle artifacts/bundle.gob -data students.csv
//	dropout predict -bundle artifacts/bundle.gob -data students.csv [-model knn]
//	dropout inspect -data students.csv [columns...]
//	dropout serve   -bundle artifacts/bundle.gob [-addr :8080]
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/edustats/dropout/config"
	"github.com/edustats/dropout/dataset"
	"github.com/edustats/dropout/experiment"
	"github.com/edustats/dropout/metrics"
	"github.com/edustats/dropout/pkg/log"
	"github.com/edustats/dropout/server"

	"gonum.org/v1/gonum/mat"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	if len(args) == 0 {
		usage(out)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "train":
		return cmdTrain(rest, out)
	case "evaluate":
		return cmdEvaluate(rest, out)
	case "predict":
		return cmdPredict(rest, out)
	case "inspect":
		return cmdInspect(rest, out)
	case "serve":
		return cmdServe(rest, out)
	case "-h", "--help", "help":
		usage(out)
		return exitOK
	}

	fmt.Fprintf(out, "unknown command %q\n\n", cmd)
	usage(out)
	return exitUsage
}

// setupLogging validates the -log-level flag and installs the logger. A typo
// in the flag is a usage error, not a crash.
func setupLogging(name, level string, out io.Writer) bool {
	switch level {
	case "debug", "info", "warn", "error":
		log.Setup(level)
		return true
	}
	fmt.Fprintf(out, "%s: invalid -log-level %q (want debug, info, warn, error)\n", name, level)
	return false
}

func usage(out io.Writer) {
	fmt.Fprintln(out, `usage: dropout <command> [flags]

commands:
  train     run an experiment: load, preprocess, train and evaluate models
  evaluate  score a saved bundle against a labeled dataset
  predict   score unlabeled records with a saved bundle
  inspect   audit a dataset's columns for numeric cleanliness
  serve     expose a saved bundle over HTTP`)
}

func cmdTrain(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "path to the experiment HCL file")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *configPath == "" {
		fmt.Fprintln(out, "train: -config is required")
		return exitUsage
	}
	if !setupLogging("train", *logLevel, out) {
		return exitUsage
	}

	exp, err := config.LoadExperiment(*configPath)
	if err != nil {
		slog.Error("failed to load experiment", log.ErrAttr(err))
		return exitError
	}

	result, err := experiment.Run(exp)
	if err != nil {
		slog.Error("experiment failed", log.ErrAttr(err))
		return exitError
	}

	fmt.Fprintln(out, result.Audit.String())
	fmt.Fprintln(out, result.Report)
	return exitOK
}

func cmdEvaluate(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(out)
	bundlePath := fs.String("bundle", "", "path to a saved bundle")
	dataPath := fs.String("data", "", "labeled dataset to score against")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *bundlePath == "" || *dataPath == "" {
		fmt.Fprintln(out, "evaluate: -bundle and -data are required")
		return exitUsage
	}
	if !setupLogging("evaluate", *logLevel, out) {
		return exitUsage
	}

	bundle, err := experiment.LoadBundle(*bundlePath)
	if err != nil {
		slog.Error("failed to load bundle", log.ErrAttr(err))
		return exitError
	}

	records, labels, err := labeledRecords(*dataPath, bundle)
	if err != nil {
		slog.Error("failed to load dataset", log.ErrAttr(err))
		return exitError
	}

	yTrue := mat.NewVecDense(len(labels), nil)
	for i, code := range labels {
		yTrue.SetVec(i, float64(code))
	}

	for _, name := range bundle.ModelNames() {
		preds, err := bundle.Predict(name, records)
		if err != nil {
			slog.Error("prediction failed", slog.String(log.ModelNameKey, name), log.ErrAttr(err))
			return exitError
		}
		yPred := mat.NewVecDense(len(preds), nil)
		for i, p := range preds {
			yPred.SetVec(i, float64(p.Code))
		}

		accuracy, err := metrics.Accuracy(yTrue, yPred)
		if err != nil {
			slog.Error("scoring failed", log.ErrAttr(err))
			return exitError
		}
		macroF1, err := metrics.MacroF1(yTrue, yPred)
		if err != nil {
			slog.Error("scoring failed", log.ErrAttr(err))
			return exitError
		}
		fmt.Fprintf(out, "%-22s accuracy=%.4f f1_macro=%.4f\n", name, accuracy, macroF1)
	}
	return exitOK
}

func cmdPredict(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(out)
	bundlePath := fs.String("bundle", "", "path to a saved bundle")
	dataPath := fs.String("data", "", "dataset of records to score")
	modelName := fs.String("model", "", "model to use (default: best from training)")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *bundlePath == "" || *dataPath == "" {
		fmt.Fprintln(out, "predict: -bundle and -data are required")
		return exitUsage
	}
	if !setupLogging("predict", *logLevel, out) {
		return exitUsage
	}

	bundle, err := experiment.LoadBundle(*bundlePath)
	if err != nil {
		slog.Error("failed to load bundle", log.ErrAttr(err))
		return exitError
	}

	table, err := dataset.Load(*dataPath)
	if err != nil {
		slog.Error("failed to load dataset", log.ErrAttr(err))
		return exitError
	}
	records := tableRecords(table)

	preds, err := bundle.Predict(*modelName, records)
	if err != nil {
		slog.Error("prediction failed", log.ErrAttr(err))
		return exitError
	}

	w := csv.NewWriter(out)
	header := []string{"row", "prediction"}
	classNames := bundle.ClassNames()
	for code := 0; code < len(classNames); code++ {
		header = append(header, "p_"+classNames[code])
	}
	if err := w.Write(header); err != nil {
		return exitError
	}
	for i, p := range preds {
		row := []string{fmt.Sprintf("%d", i), p.Label}
		for code := 0; code < len(classNames); code++ {
			row = append(row, fmt.Sprintf("%.4f", p.Probabilities[classNames[code]]))
		}
		if err := w.Write(row); err != nil {
			return exitError
		}
	}
	w.Flush()
	return exitOK
}

func cmdInspect(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(out)
	dataPath := fs.String("data", "", "dataset to audit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *dataPath == "" {
		fmt.Fprintln(out, "inspect: -data is required")
		return exitUsage
	}

	table, err := dataset.Load(*dataPath)
	if err != nil {
		fmt.Fprintf(out, "inspect: %v\n", err)
		return exitError
	}

	audit, err := dataset.VerifyColumns(table, fs.Args()...)
	if err != nil {
		fmt.Fprintf(out, "inspect: %v\n", err)
		return exitError
	}

	fmt.Fprintln(out, audit.String())
	if len(audit.NonNumericColumns()) > 0 {
		return exitError
	}
	return exitOK
}

func cmdServe(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(out)
	bundlePath := fs.String("bundle", "", "path to a saved bundle")
	addr := fs.String("addr", ":8080", "listen address")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *bundlePath == "" {
		fmt.Fprintln(out, "serve: -bundle is required")
		return exitUsage
	}
	if !setupLogging("serve", *logLevel, out) {
		return exitUsage
	}

	bundle, err := experiment.LoadBundle(*bundlePath)
	if err != nil {
		slog.Error("failed to load bundle", log.ErrAttr(err))
		return exitError
	}

	slog.Info("serving predictions",
		slog.String("addr", *addr),
		slog.String(log.ModelNameKey, bundle.Best))
	if err := server.New(bundle).Run(*addr); err != nil {
		slog.Error("server stopped", log.ErrAttr(err))
		return exitError
	}
	return exitOK
}

// labeledRecords splits a labeled table into feature records and encoded
// target codes using the bundle's label mapping.
func labeledRecords(path string, bundle *experiment.Bundle) ([]map[string]string, []int, error) {
	table, err := dataset.Load(path)
	if err != nil {
		return nil, nil, err
	}

	labels, err := table.Column(bundle.TargetColumn)
	if err != nil {
		return nil, nil, err
	}
	features, err := table.Drop(bundle.TargetColumn)
	if err != nil {
		return nil, nil, err
	}

	codes := make([]int, len(labels))
	if bundle.Target != nil {
		codes, err = bundle.Target.Transform(labels)
		if err != nil {
			return nil, nil, err
		}
	} else {
		for i, label := range labels {
			if label == bundle.PositiveLabel {
				codes[i] = 1
			}
		}
	}
	return tableRecords(features), codes, nil
}

// tableRecords converts table rows into the column-keyed records the bundle
// consumes.
func tableRecords(t *dataset.Table) []map[string]string {
	records := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for j, col := range t.Columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	return records
}
