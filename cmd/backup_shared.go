package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// backupTableList reads a table filter for the export and import
// commands. Entries may arrive comma-joined when set through
// environment variables, so values are split, trimmed, and lowercased
// to match the backup schema's table names.
func backupTableList(key string) []string {
	return normalizeTableList(viper.GetStringSlice(key))
}

func normalizeTableList(values []string) []string {
	var tables []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			name := strings.ToLower(strings.TrimSpace(part))
			if name == "" {
				continue
			}
			tables = append(tables, name)
		}
	}
	return tables
}

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}
