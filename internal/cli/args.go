package cli

import "os"

// ParseArgs returns the env file path from CLI arguments.
//
// It accepts both `-e <path>` and `--env <path>`. If no explicit env flag is
// provided, it falls back to `.env`.
func ParseArgs(argv []string) string {
	for i := 0; i < len(argv); i++ {
		if (argv[i] == "-e" || argv[i] == "--env") && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ".env"
}

// Exit terminates the process with the given exit code.
func Exit(code int) {
	os.Exit(code)
}
