package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/boss/db"
	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the boss database",
	Long: sym.DB + ` db — Manage the boss database

Examples:
  boss db migrate                 # Apply pending migrations
  boss db version                 # List applied migrations`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runDbMigrate,
}

var dbVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "List applied migrations",
	Args:  cobra.NoArgs,
	RunE:  runDbVersion,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbVersionCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Connect applies pending migrations
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	versions, err := db.AppliedVersions(database)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return errors.New("no migrations recorded after migrate")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Database is at migration %s\n", sym.DB, versions[len(versions)-1])
	return nil
}

func runDbVersion(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	versions, err := db.AppliedVersions(database)
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}
