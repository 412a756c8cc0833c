package agent

// AiderAgent implements Agent for the aider CLI.
type AiderAgent struct{}

// Name returns the agent identifier.
func (a *AiderAgent) Name() string {
	return "aider"
}

// Command builds the aider invocation. aider persists its chat history in
// the workspace, so resume only needs the restore flag.
func (a *AiderAgent) Command(opts LaunchOptions) []string {
	argv := []string{"aider", "--yes-always"}
	if opts.Continue {
		argv = append(argv, "--restore-chat-history")
	}
	model := opts.Model
	if model == "" {
		model = "sonnet"
	}
	argv = append(argv, "--model", model)
	if opts.Prompt != "" {
		argv = append(argv, "--message", opts.Prompt)
	}
	return argv
}

// AuthEnvVar returns the environment variable carrying the API key.
func (a *AiderAgent) AuthEnvVar() string {
	return "ANTHROPIC_API_KEY"
}

// SecretAccount returns the credential-store account for the key.
func (a *AiderAgent) SecretAccount() string {
	return "anthropic-api-key"
}

// InstallCommand returns the shell command baked into the base image build.
func (a *AiderAgent) InstallCommand() string {
	return "python3 -m pip install --break-system-packages aider-chat"
}

var _ Agent = (*AiderAgent)(nil)
