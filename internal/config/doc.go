// Package config defines, loads and validates the pipeline configuration.
//
// Every recognised option lives on Config with an explicit type and default.
// Values are layered (defaults, optional config file, DOCINGEST_* environment
// variables, command-line flags) with viper, decoded strictly so unknown keys
// fail, and validated once before the first stage runs.
package config
