package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acaciaworks/logship/internal/config"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate a config document without starting the service",
	RunE:  runValidateConfig,
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	path := snapshotPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if verr := config.Validate(environmentConfig()); verr != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist yet; the environment-derived default would be used and it is invalid: %v\n", path, verr)
				return verr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist yet; the environment-derived default would be used and it validates.\n", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var cfg config.ServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%s is not valid JSON: %w", path, err)
	}

	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is invalid: %v\n", path, err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid.\n", path)
	return nil
}
