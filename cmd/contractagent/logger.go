// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/contractagent/pkg/config"
	"github.com/kadirpekel/contractagent/pkg/logger"
)

const (
	// DefaultLogLevel is used when neither flags, environment nor config
	// set a level.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the default log format
	DefaultLogFormat = logger.FormatSimple
)

// initLogger installs the process logger. Empty values fall back to the
// defaults. The returned cleanup closes the log file, if any.
func initLogger(logLevel, logFile, logFormat string) (func(), error) {
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	if logFormat == "" {
		logFormat = DefaultLogFormat
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = os.Stderr
	cleanup := func() {}
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}

// applyConfigLogger re-initializes the logger from the config file for
// every setting not given by flag or environment.
func (cli *CLI) applyConfigLogger(cfg *config.LoggerConfig) error {
	level, file, format := cli.LogLevel, cli.LogFile, cli.LogFormat
	if level == "" {
		level = cfg.Level
	}
	if file == "" {
		file = cfg.File
	}
	if format == "" {
		format = cfg.Format
	}
	if level == cli.LogLevel && file == cli.LogFile && format == cli.LogFormat {
		return nil
	}

	cleanup, err := initLogger(level, file, format)
	if err != nil {
		return err
	}
	cli.logCleanup = append(cli.logCleanup, cleanup)
	return nil
}
