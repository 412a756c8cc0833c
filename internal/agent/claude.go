package agent

// ClaudeAgent implements Agent for the Claude Code CLI.
type ClaudeAgent struct{}

// Name returns the agent identifier.
func (a *ClaudeAgent) Name() string {
	return "claude"
}

// Command builds the claude invocation. The prompt rides as a positional
// argument so an empty prompt leaves the CLI in its interactive REPL.
func (a *ClaudeAgent) Command(opts LaunchOptions) []string {
	argv := []string{"claude"}
	if opts.Continue {
		argv = append(argv, "--continue")
	}
	if opts.Model != "" {
		argv = append(argv, "--model", opts.Model)
	}
	if opts.Prompt != "" {
		argv = append(argv, opts.Prompt)
	}
	return argv
}

// AuthEnvVar returns the environment variable carrying the API key.
func (a *ClaudeAgent) AuthEnvVar() string {
	return "ANTHROPIC_API_KEY"
}

// SecretAccount returns the credential-store account for the key.
func (a *ClaudeAgent) SecretAccount() string {
	return "anthropic-api-key"
}

// InstallCommand returns the shell command baked into the base image build.
func (a *ClaudeAgent) InstallCommand() string {
	return "npm install -g @anthropic-ai/claude-code"
}

var _ Agent = (*ClaudeAgent)(nil)
