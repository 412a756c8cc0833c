package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/provider"
	"github.com/skybox-dev/skybox/internal/workspace"
)

var upCmd = &cobra.Command{
	Use:   "up <name>",
	Short: "Create and start a new session",
	Long: `Creates a sandbox, clones the repository, checks out the session branch
and launches the agent. Without --detach the command waits for the agent
to start and attaches to its tmux session.

With --mount the branch is checked out into a host-side workspace and
bind-mounted into the sandbox instead of cloned (local provider only).`,
	Args: cobra.ExactArgs(1),
	RunE: runUp,
}

var (
	upRepo     string
	upBranch   string
	upAgent    string
	upModel    string
	upPrompt   string
	upProvider string
	upDetach   bool
	upMount    bool
	upEnv      []string
)

func init() {
	upCmd.Flags().StringVarP(&upRepo, "repo", "r", "", "Repository clone URL or local path")
	upCmd.Flags().StringVarP(&upBranch, "branch", "b", "", "Session branch (default skybox/<name>)")
	upCmd.Flags().StringVarP(&upAgent, "agent", "a", "", "Coding agent to run")
	upCmd.Flags().StringVarP(&upModel, "model", "m", "", "Model passed to the agent")
	upCmd.Flags().StringVarP(&upPrompt, "prompt", "p", "", "Initial instruction for the agent")
	upCmd.Flags().StringVar(&upProvider, "provider", "", "Backend: local or remote (default from config)")
	upCmd.Flags().BoolVarP(&upDetach, "detach", "d", false, "Return once the sandbox boots; provision in the background")
	upCmd.Flags().BoolVar(&upMount, "mount", false, "Bind-mount a branch checkout instead of cloning (local only)")
	upCmd.Flags().StringArrayVarP(&upEnv, "env", "e", nil, "Extra agent environment as KEY=VALUE (repeatable)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()

	if err := config.ValidateSessionName(name); err != nil {
		return errors.ValidationError(err.Error())
	}

	tag := upProvider
	if tag == "" {
		tag = sky.Config.Provider
	}
	p, err := sky.Provider(tag)
	if err != nil {
		return err
	}
	if err := p.EnsureReady(ctx); err != nil {
		return err
	}
	if err := p.EnsureImage(ctx, imageProgress()); err != nil {
		return err
	}

	opts, err := buildCreateOptions(cmd, name, tag)
	if err != nil {
		return err
	}

	logging.Debug("creating session", "name", name, "provider", tag, "branch", opts.Branch)
	logInfo("Creating session %s...", name)

	sess, err := p.Create(ctx, opts)
	if err != nil {
		return err
	}

	logSuccess("Session %s created", sess.Name)
	fmt.Printf("  ID: %s\n", sess.ID)
	fmt.Printf("  Branch: %s\n", sess.Branch)
	fmt.Printf("  Agent: %s\n", sess.Agent)

	if !opts.Interactive {
		fmt.Printf("  Provisioning continues in the background. Attach with: skybox attach %s\n", sess.Name)
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("  Attach with: skybox attach %s\n", sess.Name)
		return nil
	}
	return p.Attach(ctx, sess.ID)
}

// buildCreateOptions merges flags, the per-repo settings file and the
// global config into create options. Precedence: flag, .skybox.yml,
// config default.
func buildCreateOptions(cmd *cobra.Command, name, tag string) (provider.CreateOptions, error) {
	opts := provider.CreateOptions{
		Name:        name,
		Branch:      upBranch,
		Repo:        upRepo,
		Agent:       upAgent,
		Model:       upModel,
		Prompt:      upPrompt,
		Interactive: !upDetach,
	}
	if opts.Branch == "" {
		opts.Branch = "skybox/" + name
	}

	env, err := parseEnvFlags(upEnv)
	if err != nil {
		return provider.CreateOptions{}, err
	}
	opts.Env = env

	// A local repository path gets normalized and may carry a
	// .skybox.yml with session defaults.
	var repoRoot string
	if opts.Repo != "" && !isRemoteRepo(opts.Repo) {
		abs, err := filepath.Abs(opts.Repo)
		if err != nil {
			return provider.CreateOptions{}, errors.ValidationError(fmt.Sprintf("invalid repo path %q: %v", opts.Repo, err))
		}
		if _, err := os.Stat(abs); err != nil {
			return provider.CreateOptions{}, errors.ValidationError(fmt.Sprintf("repo path does not exist: %s", abs))
		}
		opts.Repo = abs
		repoRoot = abs

		rf, err := config.LoadRepoFile(abs)
		if err != nil {
			return provider.CreateOptions{}, err
		}
		if rf != nil {
			if opts.Agent == "" {
				opts.Agent = rf.Agent
			}
			if opts.Model == "" {
				opts.Model = rf.Model
			}
			opts.Init = rf.Init
			if !upMount {
				mountDir, err := rf.ResolveMount(abs)
				if err != nil {
					return provider.CreateOptions{}, err
				}
				opts.MountDir = mountDir
			}
		}
	}
	if opts.Agent == "" {
		opts.Agent = sky.Config.Agent
	}
	if opts.Model == "" {
		opts.Model = sky.Config.Model
	}

	if upMount {
		mountDir, err := prepareMountWorkspace(cmd, name, tag, repoRoot, opts.Branch)
		if err != nil {
			return provider.CreateOptions{}, err
		}
		opts.MountDir = mountDir
	}
	return opts, nil
}

// prepareMountWorkspace checks the session branch out into a host-side
// workspace under the data dir and returns its path.
func prepareMountWorkspace(cmd *cobra.Command, name, tag, repoRoot, branch string) (string, error) {
	if tag != config.ProviderLocal {
		return "", errors.ValidationError("--mount requires the local provider")
	}
	if repoRoot == "" {
		return "", errors.ValidationError("--mount requires --repo pointing at a local repository")
	}
	backend := workspace.DetectBackend(repoRoot)
	if backend == nil {
		return "", errors.ValidationError(fmt.Sprintf("%s is not a git or jj repository", repoRoot))
	}

	wsPath := filepath.Join(sky.Paths.WorktreesDir, name)
	logging.Debug("creating mount workspace",
		"backend", backend.Name(), "repo", repoRoot, "branch", branch, "path", wsPath)
	if err := backend.Create(cmd.Context(), repoRoot, branch, wsPath); err != nil {
		return "", err
	}
	return wsPath, nil
}

// isRemoteRepo reports whether repo is a clone URL rather than a local
// path.
func isRemoteRepo(repo string) bool {
	return strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@")
}

func parseEnvFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.ValidationError(fmt.Sprintf("invalid --env %q, expected KEY=VALUE", pair))
		}
		env[k] = v
	}
	return env, nil
}

// imageProgress renders base image build steps. The fast path, image
// already present, stays quiet outside verbose mode.
func imageProgress() provider.ProgressFunc {
	return func(step provider.Step, detail string) {
		switch step {
		case provider.StepChecking:
			logging.Debug("checking base image", "detail", detail)
		case provider.StepCreating:
			logInfo("Preparing base image: %s", detail)
		case provider.StepInstalling:
			logInfo("Installing toolchain: %s", detail)
		case provider.StepFinalizing:
			logInfo("Finalizing: %s", detail)
		case provider.StepDone:
			logging.Debug("base image ready", "detail", detail)
		}
	}
}
