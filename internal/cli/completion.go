package cli

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/textube/internal/core/acquire"
	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/webdav"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for textube.

Bash:
  source <(textube completion bash)

Zsh:
  textube completion zsh > "${fpath[1]}/_textube"

Fish:
  textube completion fish > ~/.config/fish/completions/textube.fish

PowerShell:
  textube completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return cmd.Help()
		}
	},
}

// maxCompletions keeps zsh from redrawing the prompt on long lists.
const maxCompletions = 15

func init() {
	rootCmd.AddCommand(completionCmd)

	rootCmd.ValidArgsFunction = completeSource
	rootCmd.RegisterFlagCompletionFunc("engine", cobra.FixedCompletions([]string{"streaming", "batch"}, cobra.ShellCompDirectiveNoFileComp))
	rootCmd.RegisterFlagCompletionFunc("tier", cobra.FixedCompletions([]string{"base", "small", "medium", "large"}, cobra.ShellCompDirectiveNoFileComp))
}

// completeSource completes configured WebDAV remotes and the media files
// under them.
func completeSource(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg := config.LoadOrDefault()
	if !strings.Contains(toComplete, ":") {
		return completeRemotes(cfg, toComplete)
	}
	if !webdav.IsRemotePath(toComplete) {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	name, remotePath, err := webdav.ParseRemotePath(toComplete)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	server := cfg.GetWebDAVServer(name)
	if server == nil {
		return nil, cobra.ShellCompDirectiveError
	}
	client, err := webdav.NewClientFromConfig(server)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	dir, base := splitRemotePath(unescapeShellPath(remotePath))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	files, err := client.List(ctx, dir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	entries := make([]remoteEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, remoteEntry{name: f.Name, dir: f.IsDir})
	}
	completions := filterRemoteEntries(name, dir, base, entries)
	if len(completions) == 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completions, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func completeRemotes(cfg *config.Config, prefix string) ([]string, cobra.ShellCompDirective) {
	var completions []string
	for name := range cfg.WebDAVServers {
		remote := name + ":"
		if strings.HasPrefix(remote, prefix) {
			completions = append(completions, remote)
		}
	}
	if len(completions) == 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completions, cobra.ShellCompDirectiveNoSpace
}

type remoteEntry struct {
	name string
	dir  bool
}

// splitRemotePath returns the directory to list and the name prefix typed
// so far. A trailing slash lists the path itself.
func splitRemotePath(p string) (dir, base string) {
	if p == "" {
		return "/", ""
	}
	if strings.HasSuffix(p, "/") {
		return p, ""
	}
	dir, base = path.Split(p)
	if dir == "" {
		dir = "/"
	}
	return dir, base
}

// filterRemoteEntries keeps directories and media files matching base.
func filterRemoteEntries(remote, dir, base string, entries []remoteEntry) []string {
	prefix := remote + ":" + strings.TrimSuffix(dir, "/") + "/"
	var out []string
	for _, e := range entries {
		if !strings.HasPrefix(e.name, base) {
			continue
		}
		switch {
		case e.dir:
			out = append(out, prefix+e.name+"/")
		case acquire.IsMediaFile(e.name):
			out = append(out, prefix+e.name)
		}
		if len(out) == maxCompletions {
			break
		}
	}
	return out
}

// unescapeShellPath removes common shell escape sequences
func unescapeShellPath(s string) string {
	r := strings.NewReplacer(
		`\ `, " ",
		`\[`, "[",
		`\]`, "]",
		`\(`, "(",
		`\)`, ")",
		`\&`, "&",
		`\'`, "'",
		`\"`, `"`,
	)
	return r.Replace(s)
}
