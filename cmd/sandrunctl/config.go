// Copyright 2018 The gVisor Authors.
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
	"time"

	"github.com/BurntSushi/toml"
)

// IntervalConfig describes one interval signal to install on every process
// spawned by this CLI invocation, as a convenience for exercising
// ProcessControl.SignalInterval without separate flags per signal.
type IntervalConfig struct {
	Signal   string        `toml:"signal"`
	Interval time.Duration `toml:"interval"`
	Repeat   bool          `toml:"repeat"`
}

// Config is sandrunctl's on-disk configuration, loaded from a TOML file via
// the -config flag. It is entirely optional; a zero Config runs every
// subcommand with debug logging off and no startup intervals.
type Config struct {
	Debug     bool              `toml:"debug"`
	Intervals []IntervalConfig  `toml:"intervals"`
	Tags      map[string]string `toml:"tags"`
}

// loadConfig reads and parses a TOML config file. An empty path returns the
// zero Config rather than an error, so -config is always optional.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("sandrunctl: decoding config %q: %w", path, err)
	}
	return cfg, nil
}
