// Package config loads the envrebuild configuration file.
//
// The file lives at a fixed absolute path and holds line-oriented
// KEY=value pairs in dotenv style. Four keys are required; a missing file
// or an empty required value is fatal (exit code 200) and stops the
// program before any flag is parsed.
package config
