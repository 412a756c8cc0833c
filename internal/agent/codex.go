package agent

// CodexAgent implements Agent for the OpenAI Codex CLI.
type CodexAgent struct{}

// Name returns the agent identifier.
func (a *CodexAgent) Name() string {
	return "codex"
}

// Command builds the codex invocation. Resumed sessions reattach to the
// most recent conversation via `codex resume --last`.
func (a *CodexAgent) Command(opts LaunchOptions) []string {
	argv := []string{"codex"}
	if opts.Continue {
		argv = append(argv, "resume", "--last")
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
func (a *CodexAgent) AuthEnvVar() string {
	return "OPENAI_API_KEY"
}

// SecretAccount returns the credential-store account for the key.
func (a *CodexAgent) SecretAccount() string {
	return "openai-api-key"
}

// InstallCommand returns the shell command baked into the base image build.
func (a *CodexAgent) InstallCommand() string {
	return "npm install -g @openai/codex"
}

var _ Agent = (*CodexAgent)(nil)
