package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/deskcast/internal/audit"
	"github.com/breeze-rmm/deskcast/internal/capture"
	"github.com/breeze-rmm/deskcast/internal/certs"
	"github.com/breeze-rmm/deskcast/internal/config"
	"github.com/breeze-rmm/deskcast/internal/logging"
	"github.com/breeze-rmm/deskcast/internal/privilege"
)

var displaysCmd = &cobra.Command{
	Use:   "displays",
	Short: "List displays available for streaming",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := capture.Displays()
		if err != nil {
			return err
		}
		printDisplays(os.Stdout, targets)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		shown := *cfg
		if shown.Password != "" {
			shown.Password = "********"
		}
		out, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
		if err := config.SaveTo(config.Default(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configSetPasswordCmd = &cobra.Command{
	Use:   "set-password [password]",
	Short: "Set the viewer password (empty disables authentication)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			password, err = promptPassword()
			if err != nil {
				return err
			}
		}

		cfg.Password = password
		for _, problem := range cfg.Validate() {
			if strings.Contains(problem.Error(), "password") {
				return problem
			}
		}
		if err := config.SaveTo(cfg, configPath()); err != nil {
			return err
		}
		if password == "" {
			fmt.Println("Password cleared; viewers connect without authentication.")
		} else {
			fmt.Println("Password updated.")
		}
		return nil
	},
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "New password: ")
	fd := os.Stdin.Fd()
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password given")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the HTTPS certificate",
}

var certExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the public certificate (.cer) for installing on phones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		path := certs.PublicFile
		if len(args) == 1 {
			path = args[0]
		}

		p := certs.NewProvider(cfg.CertDir, logging.L("certs"))
		if err := p.Export(path); err != nil {
			return err
		}
		cert, err := p.GetOrCreateCertificate()
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		fmt.Printf("SHA-256 fingerprint: %s\n", certs.Fingerprint(cert.Leaf.Raw))
		fmt.Printf("Expires: %s\n", cert.Leaf.NotAfter.Format("2006-01-02"))
		return nil
	},
}

var certRegenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Discard the stored certificate and create a new one",
	Long: `Discard the stored certificate and create a new one.

Phones that trusted the old certificate must install the new one, exported
with "deskcast cert export". Restart a running server to pick it up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cert, err := certs.NewProvider(cfg.CertDir, logging.L("certs")).Regenerate()
		if err != nil {
			return err
		}
		fmt.Printf("Created new certificate in %s\n", cfg.CertDir)
		fmt.Printf("SHA-256 fingerprint: %s\n", certs.Fingerprint(cert.Leaf.Raw))
		fmt.Printf("Expires: %s\n", cert.Leaf.NotAfter.Format("2006-01-02"))
		return nil
	},
}

var secureDesktopCmd = &cobra.Command{
	Use:   "securedesktop",
	Short: "Control whether UAC prompts use the secure desktop",
	Long: `Control whether UAC prompts use the secure desktop.

Prompts on the secure desktop cannot be captured or answered remotely.
Disabling it draws them on the user's desktop instead. Changing the
setting requires an elevated prompt.`,
}

var secureDesktopEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Show UAC prompts on the secure desktop (Windows default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSecureDesktop(true)
	},
}

var secureDesktopDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Show UAC prompts on the user desktop so they can be streamed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSecureDesktop(false)
	},
}

var secureDesktopStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether UAC prompts use the secure desktop",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := privilege.Check()
		if st.SecureDesktop {
			fmt.Println("Secure desktop: enabled (UAC prompts are not streamed)")
		} else {
			fmt.Println("Secure desktop: disabled")
		}
		if !st.Elevated {
			fmt.Println("Run elevated to change this setting.")
		}
		return nil
	},
}

func setSecureDesktop(enable bool) error {
	if err := privilege.SetSecureDesktop(enable); err != nil {
		return err
	}
	if enable {
		fmt.Println("Secure desktop enabled.")
	} else {
		fmt.Println("Secure desktop disabled. UAC prompts will appear in the stream.")
	}
	return nil
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Start deskcast when the current user logs in",
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start the server at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAutostartConfig(true)
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Do not start the server at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAutostartConfig(false)
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether autostart is enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := autostartEnabled()
		if err != nil {
			return err
		}
		if enabled {
			fmt.Println("Autostart: enabled")
		} else {
			fmt.Println("Autostart: disabled")
		}
		return nil
	},
}

func setAutostartConfig(enable bool) error {
	if err := setAutostart(enable); err != nil {
		return err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg.AutoStart = enable
	if err := config.SaveTo(cfg, configPath()); err != nil {
		return err
	}
	if enable {
		fmt.Println("Autostart enabled.")
	} else {
		fmt.Println("Autostart disabled.")
	}
	return nil
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the viewer access log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Check the hash chain of an access log file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			path = cfg.AuditLog
		}
		if path == "" {
			return errors.New("no access log configured (set audit_log or pass a file)")
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		n, err := audit.Verify(f)
		if err != nil {
			return fmt.Errorf("%s: %d valid entries, then %w", path, n, err)
		}
		fmt.Printf("%s: %d entries, chain intact\n", path, n)
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditVerifyCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd, configSetPasswordCmd)
	certCmd.AddCommand(certExportCmd, certRegenerateCmd)
	secureDesktopCmd.AddCommand(secureDesktopEnableCmd, secureDesktopDisableCmd, secureDesktopStatusCmd)
	autostartCmd.AddCommand(autostartEnableCmd, autostartDisableCmd, autostartStatusCmd)
}
