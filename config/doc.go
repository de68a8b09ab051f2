// Package config handles application configuration management.
//
// The config package loads settings from a config.yaml file via viper,
// applies defaults that mirror the original sandbox image, validates the
// result and converts the image section into an image.Spec for the
// builder. Every hardcoded value of the original artifact (base version,
// identity names, paths, idle command) is a configurable field here.
package config
