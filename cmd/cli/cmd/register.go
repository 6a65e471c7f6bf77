package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hubcredo/pkg/api"
)

var (
	registerName  string
	registerEmail string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and print its API key",
	Long: `Register a new user. The API key is printed once and cannot be recovered,
so store it right away (for example in HUBCREDO_TOKEN).`,
	Run: func(cmd *cobra.Command, args []string) {
		if registerName == "" || registerEmail == "" {
			cmd.Println("Both --name and --email are required")
			return
		}

		client := NewClient(viper.GetString("url"), "")
		resp, err := client.Register(api.RegisterRequest{Name: registerName, Email: registerEmail})
		if err != nil {
			cmd.Printf("Registration failed: %v\n", err)
			return
		}

		cmd.Printf("%s %sRegistered%s %s <%s>\n", statusIcon("completed"), colorBold, colorReset, resp.User.Name, resp.User.Email)
		cmd.Printf("%sUser ID:%s  %s\n", colorDim, colorReset, resp.User.ID)
		cmd.Printf("%sAPI key:%s  %s\n", colorDim, colorReset, resp.APIKey)
		cmd.Println("Save this key now; it will not be shown again.")
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&registerName, "name", "", "Display name")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Email address")
}
