/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command flowetl is the engine's CLI (§6): "run [config-path]" drives the
// streaming execution graph to completion (or until a signal stops it);
// "sql" evaluates one SQL statement against the batch DataFrame façade.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowetl/flowetl/internal/config"
	"github.com/flowetl/flowetl/internal/dataframe"
	"github.com/flowetl/flowetl/internal/flowlog"
	"github.com/flowetl/flowetl/internal/graph"
)

const defaultConfigPath = "config/application.yaml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "sql":
		err = sqlCmd(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		flowlog.Error("flowetl: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: flowetl run [config-path] | flowetl sql [--sql <s> | --file <path>]")
}

// runCmd loads the configuration, builds the execution graph, and drives
// it until every source ends or SIGINT/SIGTERM sets the global terminated
// flag (§6 "Signals").
func runCmd(args []string) error {
	path := defaultConfigPath
	if len(args) > 0 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	g, err := graph.Build(cfg)
	if err != nil {
		return err
	}

	runner := graph.NewRunner(g, cfg.Env.Application.Parallelism)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		flowlog.Info("flowetl: received %s, stopping", sig)
		runner.Stop()
	}()

	return runner.Run()
}

// sqlCmd evaluates one SQL statement against the batch DataFrame façade
// (§2 "Batch DataFrame façade", §6): --sql takes the statement literally,
// --file reads it from a file, and with neither flag it is read from
// stdin (the REPL's one-shot degenerate case).
func sqlCmd(args []string) error {
	fs := flag.NewFlagSet("sql", flag.ContinueOnError)
	sqlText := fs.String("sql", "", "SQL statement to evaluate")
	filePath := fs.String("file", "", "path to a file containing the SQL statement")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stmt, err := resolveStatement(*sqlText, *filePath)
	if err != nil {
		return err
	}

	out, err := dataframe.Query(dataframe.Empty(), stmt)
	if err != nil {
		return err
	}
	return out.WriteNDJSON(os.Stdout)
}

func resolveStatement(sqlFlag, filePath string) (string, error) {
	if sqlFlag != "" {
		return sqlFlag, nil
	}
	if filePath != "" {
		b, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("sql: read %s: %w", filePath, err)
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	var buf []byte
	for scanner.Scan() {
		buf = append(buf, scanner.Bytes()...)
		buf = append(buf, '\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("sql: read stdin: %w", err)
	}
	return string(buf), nil
}
