// Package config loads lal-diagnose settings from local and global YAML
// files. The command maps flags over whatever the files provide.
package config
