// Package config loads runstorm settings.
//
// Settings are layered, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← RUNSTORM_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← config.toml / config.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Each layer is read into a map, the maps are deep-merged and the result
// is decoded onto the defaults with mapstructure.
//
// A TOML file looks like:
//
//	python = "python3.12"
//	clear_on_run = false
//
//	[log]
//	level = "debug"
//	file = "/tmp/runstorm.log"
//
//	[[rules]]
//	name = "npm"
//	pattern = "Cannot find module '([^'./][^']*)'"
//	command = ["npm", "install", "{name}"]
//
//	[remediation]
//	js = "npm"
//
// Watcher reloads the file when it changes on disk.
package config
