package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmpwsk/cocoding/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample configuration file with default values.

The file is written to $XDG_CONFIG_HOME/cocoding/config.yaml unless --config
points elsewhere. Existing files are preserved unless --force is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if GetConfigFile() != "" {
		configPath = GetConfigFile()
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: cocoding start")
	fmt.Printf("  3. Or specify a custom config: cocoding start --config %s\n", configPath)
	return nil
}
