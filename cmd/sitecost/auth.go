package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Unlock editing for the session timeout",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		if !app.Gate.HasPassword() {
			fmt.Println("No password is set; editing is open. Use 'sitecost passwd' to set one.")
			return
		}
		if app.SessionValid() {
			fmt.Println("Already logged in.")
			return
		}
		session, err := app.Authorize("login", promptSecret("Password: "))
		if err != nil {
			fatal("login failed", err)
		}
		success("Logged in until %s", session.ExpiresAt.Local().Format("15:04"))
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Lock editing again",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		if err := app.Logout(); err != nil {
			fatal("logout failed", err)
		}
		success("Logged out")
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Set or change the password guarding edits",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()

		var current string
		if app.Gate.HasPassword() {
			current = promptSecret("Current password: ")
		}
		password := promptSecret("New password: ")
		confirm := promptSecret("Confirm new password: ")

		if err := app.SetPassword(current, password, confirm); err != nil {
			fatal("failed to set password", err)
		}
		success("Password updated; log in again to edit")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, passwdCmd)
}
