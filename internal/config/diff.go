package config

import (
	"encoding/json"
	"reflect"
)

// ChangedSections lists the top-level sections that differ between old and
// next, in file order. A nil old reports every section.
func ChangedSections(old, next *Config) []string {
	if next == nil {
		return nil
	}
	if old == nil {
		old = &Config{}
	}
	var out []string
	ov, nv := reflect.ValueOf(*old), reflect.ValueOf(*next)
	t := ov.Type()
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(ov.Field(i).Interface(), nv.Field(i).Interface()) {
			out = append(out, jsonName(t.Field(i)))
		}
	}
	return out
}

// RequiresRestart reports the changed sections that are only read at startup.
// Only logging is applied live.
func RequiresRestart(old, next *Config) []string {
	var out []string
	for _, s := range ChangedSections(old, next) {
		if s != "logging" {
			out = append(out, s)
		}
	}
	return out
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			tag = tag[:i]
			break
		}
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

// Redacted returns cfg as indented JSON with secrets masked, for logs.
func Redacted(cfg *Config) string {
	if cfg == nil {
		return "null"
	}
	cp := *cfg
	if cp.SDK.AppID != "" {
		cp.SDK.AppID = "***"
	}
	if cp.Server.Pprof.Token != "" {
		cp.Server.Pprof.Token = "***"
	}
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}
