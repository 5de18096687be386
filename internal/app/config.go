package app

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/activity-spectra/configs"
)

// loadConfig merges the optional config file into the viper instance,
// applies CLI overrides and validates the result
func loadConfig(ctx *Context) (*configs.Config, error) {
	v := ctx.Viper
	if v == nil {
		v = viper.GetViper()
	}

	if ctx.ConfigFile != "" {
		if err := readConfigFile(v, ctx.ConfigFile); err != nil {
			return nil, err
		}
	}

	config, err := configs.LoadConfig(v)
	if err != nil {
		return nil, err
	}

	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	if ctx.LogLevel != "" {
		config.LogLevel = ctx.LogLevel
	}
	config.Verbose = config.Verbose || ctx.Verbose

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// readConfigFile reads a YAML or JSON configuration file into v
func readConfigFile(v *viper.Viper, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file does not exist: %s", filePath)
	}

	v.SetConfigFile(filePath)
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}

	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file %s: %w", filePath, err)
	}
	return nil
}

// windowFile is the on-disk shape of a single window, the same body the
// inference service accepts
type windowFile struct {
	Data []float64 `json:"data" yaml:"data"`
}

// readWindowFile reads {"data": [...]} or a bare array from JSON or YAML
func readWindowFile(path string) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read window file: %w", err)
	}

	var (
		wf   windowFile
		bare []float64
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &wf); err == nil && wf.Data != nil {
			return wf.Data, nil
		}
		if err := yaml.Unmarshal(raw, &bare); err != nil {
			return nil, fmt.Errorf("failed to parse window file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &wf); err == nil && wf.Data != nil {
			return wf.Data, nil
		}
		if err := json.Unmarshal(raw, &bare); err != nil {
			return nil, fmt.Errorf("failed to parse window file %s: %w", path, err)
		}
	}
	return bare, nil
}

// sanitizeForJSON replaces NaN and Inf so the encoders accept the data
func sanitizeForJSON(data any) any {
	switch v := data.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0.0
		}
		return v
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = sanitizeForJSON(val)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = sanitizeForJSON(val)
		}
		return result
	case []float64:
		result := make([]float64, len(v))
		for i, val := range v {
			if math.IsInf(val, 0) || math.IsNaN(val) {
				result[i] = 0.0
			} else {
				result[i] = val
			}
		}
		return result
	default:
		return sanitizeWithReflection(data)
	}
}

func sanitizeWithReflection(data any) any {
	if data == nil {
		return nil
	}

	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Struct:
		result := make(map[string]any)
		sanitizeStruct(val, result)
		return result
	case reflect.Slice:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			result[i] = sanitizeForJSON(val.Index(i).Interface())
		}
		return result
	case reflect.Map:
		result := make(map[string]any)
		for _, key := range val.MapKeys() {
			result[fmt.Sprintf("%v", key.Interface())] = sanitizeForJSON(val.MapIndex(key).Interface())
		}
		return result
	case reflect.Float64, reflect.Float32:
		f := val.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0.0
		}
		return f
	default:
		return val.Interface()
	}
}

// sanitizeStruct flattens embedded structs the way encoding/json does
func sanitizeStruct(val reflect.Value, into map[string]any) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if fieldType.Anonymous {
			if field.Kind() == reflect.Ptr {
				if field.IsNil() {
					continue
				}
				field = field.Elem()
			}
			if field.Kind() == reflect.Struct {
				sanitizeStruct(field, into)
				continue
			}
		}

		if !field.CanInterface() {
			continue
		}

		name := fieldType.Name
		if tag := fieldType.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			if parts := strings.Split(tag, ","); parts[0] != "" {
				name = parts[0]
			}
		}

		into[name] = sanitizeForJSON(field.Interface())
	}
}
