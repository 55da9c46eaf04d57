package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "PYREFACTOR_"

// ApplyEnvOverrides overrides fields from PYREFACTOR_<SECTION>_<KEY>
// variables. Unparseable values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	setEnvInt(&cfg.Engine.MaxSourceBytes, "ENGINE_MAX_SOURCE_BYTES")
	setEnvBool(&cfg.Engine.Strict, "ENGINE_STRICT")
	setEnvDuration(&cfg.Engine.Timeout, "ENGINE_TIMEOUT")
	setEnvInt(&cfg.Engine.IndentWidth, "ENGINE_INDENT_WIDTH")
	setEnvList(&cfg.Engine.DefaultOptions, "ENGINE_DEFAULT_OPTIONS")

	setEnvList(&cfg.Rename.ExemptNames, "RENAME_EXEMPT_NAMES")
	setEnvBoolPtr(&cfg.Rename.ExemptLambdaParams, "RENAME_EXEMPT_LAMBDA_PARAMS")

	setEnvInt(&cfg.Conditionals.Threshold, "CONDITIONALS_THRESHOLD")

	setEnvInt(&cfg.Duplicates.MinStatements, "DUPLICATES_MIN_STATEMENTS")
	setEnvInt(&cfg.Duplicates.MaxStatements, "DUPLICATES_MAX_STATEMENTS")
	setEnvBoolPtr(&cfg.Duplicates.Rewrite, "DUPLICATES_REWRITE")

	setEnvInt(&cfg.DeadCode.MaxRounds, "DEAD_CODE_MAX_ROUNDS")

	setEnvInt(&cfg.Methods.MaxStatements, "METHODS_MAX_STATEMENTS")
	setEnvInt(&cfg.Methods.MaxDepth, "METHODS_MAX_DEPTH")
	setEnvInt(&cfg.Methods.MinRun, "METHODS_MIN_RUN")
	setEnvInt(&cfg.Methods.MaxInputs, "METHODS_MAX_INPUTS")
	setEnvInt(&cfg.Methods.MaxOutputs, "METHODS_MAX_OUTPUTS")
	setEnvBoolPtr(&cfg.Methods.Rewrite, "METHODS_REWRITE")

	setEnvString(&cfg.Server.Address, "SERVER_ADDRESS")
	setEnvFloat64(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")
	setEnvInt(&cfg.Server.Burst, "SERVER_BURST")
	setEnvInt64(&cfg.Server.MaxBodyBytes, "SERVER_MAX_BODY_BYTES")
	setEnvString(&cfg.Server.SamplesDB, "SERVER_SAMPLES_DB")
	setEnvDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")

	setEnvString(&cfg.Observability.OTLPEndpoint, "OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.OTLPInsecure, "OBSERVABILITY_OTLP_INSECURE")
	setEnvString(&cfg.Observability.ServiceName, "OBSERVABILITY_SERVICE_NAME")
	setEnvFloat64(&cfg.Observability.SampleRatio, "OBSERVABILITY_SAMPLE_RATIO")
	setEnvBoolPtr(&cfg.Observability.Metrics, "OBSERVABILITY_METRICS")
	setEnvString(&cfg.Observability.LogLevel, "OBSERVABILITY_LOG_LEVEL")

	setEnvDuration(&cfg.Watch.Debounce, "WATCH_DEBOUNCE")
	setEnvList(&cfg.Watch.Exclude, "WATCH_EXCLUDE")
	setEnvBoolPtr(&cfg.Watch.RespectGitignore, "WATCH_RESPECT_GITIGNORE")
}

func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(envPrefix + key)
	if ok {
		slog.Debug("applying env override", "key", envPrefix+key, "value", val)
	}
	return val, ok
}

func setEnvString(target *string, key string) {
	if val, ok := lookup(key); ok {
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := lookup(key); ok {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := lookup(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func setEnvInt64(target *int64, key string) {
	if val, ok := lookup(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := lookup(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}
