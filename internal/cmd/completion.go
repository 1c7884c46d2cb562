package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type CompletionCmd struct {
	Shell string `arg:"" help:"Shell type: bash, zsh, or fish" enum:"bash,zsh,fish"`

	out io.Writer
}

type commandInfo struct {
	name  string
	desc  string
	flags []string
	// ext is the file type completed for positional arguments
	ext string
}

var commands = []commandInfo{
	{"forge", "Combine a HueForge model with a base model into one 3MF", []string{
		"-f", "--hueforge", "-b", "--base", "-o", "--output", "--rotatebase", "-s", "--scale", "--scaledown",
		"--xshift", "--yshift", "--zshift", "--preserve-colors", "--inject-colors-text",
		"--auto-repair", "--fill-gaps", "--output-format", "--engine", "--preview", "--open",
	}, ""},
	{"serve", "Run the web interface", []string{"--addr", "--engine", "--no-jobs"}, ""},
	{"inspect", "Inspect a 3MF or STL file and show its contents", []string{"--raw", "--formatter", "--style"}, "3mf|stl"},
	{"layers", "Show the colour layers of a 3MF file", []string{"--zshift", "--json"}, "3mf"},
	{"swaps", "Parse HueForge swap instructions into height ranges", []string{"--zoffset", "--layer-height", "--max-height", "--json"}, "txt"},
	{"repair", "Validate and repair a mesh", []string{"-o", "--output", "--check"}, "3mf|stl"},
	{"extract", "Extract the meshes of a 3MF file as STL", []string{"-o", "--output", "--ascii", "--merged"}, "3mf"},
	{"fix", "Fix namespaces and build plate transform of a slicer exported 3MF", []string{"--plate", "--skip-transform"}, "3mf"},
	{"completion", "Generate shell completion script", nil, ""},
	{"version", "Show version information", nil, ""},
}

func (c *CompletionCmd) Run() error {
	if c.out == nil {
		c.out = os.Stdout
	}
	switch c.Shell {
	case "bash":
		return c.generateBash()
	case "zsh":
		return c.generateZsh()
	case "fish":
		return c.generateFish()
	default:
		return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", c.Shell)
	}
}

func commandNames() string {
	names := make([]string, len(commands))
	for i, cmd := range commands {
		names[i] = cmd.name
	}
	return strings.Join(names, " ")
}

func (c *CompletionCmd) generateBash() error {
	var b strings.Builder
	b.WriteString(`# bash completion for smithforge

_smithforge_completions() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        opts="` + commandNames() + `"
        COMPREPLY=( $(compgen -W "${opts}" -- ${cur}) )
        return 0
    fi

    case "${prev}" in
        -f|--hueforge|-b|--base)
            COMPREPLY=( $(compgen -f -X '!*.@(3mf|stl)' -- ${cur}) )
            return 0
            ;;
        --inject-colors-text)
            COMPREPLY=( $(compgen -f -- ${cur}) )
            return 0
            ;;
        --output-format)
            COMPREPLY=( $(compgen -W "standard bambu" -- ${cur}) )
            return 0
            ;;
        --engine)
            COMPREPLY=( $(compgen -W "python assemble" -- ${cur}) )
            return 0
            ;;
    esac

    case "${COMP_WORDS[1]}" in
`)
	for _, cmd := range commands {
		fmt.Fprintf(&b, "        %s)\n", cmd.name)
		if cmd.name == "completion" {
			b.WriteString("            COMPREPLY=( $(compgen -W \"bash zsh fish\" -- ${cur}) )\n")
			b.WriteString("            ;;\n")
			continue
		}
		fmt.Fprintf(&b, "            if [[ ${cur} == -* ]]; then\n")
		fmt.Fprintf(&b, "                COMPREPLY=( $(compgen -W \"%s -h --help\" -- ${cur}) )\n", strings.Join(cmd.flags, " "))
		if cmd.ext != "" {
			b.WriteString("            else\n")
			fmt.Fprintf(&b, "                COMPREPLY=( $(compgen -f -X '!*.@(%s)' -- ${cur}) )\n", cmd.ext)
		}
		b.WriteString("            fi\n")
		b.WriteString("            ;;\n")
	}
	b.WriteString(`    esac
    return 0
}

complete -F _smithforge_completions smithforge
`)
	_, err := io.WriteString(c.out, b.String())
	return err
}

func (c *CompletionCmd) generateZsh() error {
	var b strings.Builder
	b.WriteString(`#compdef smithforge

_smithforge() {
    local -a commands
    commands=(
`)
	for _, cmd := range commands {
		fmt.Fprintf(&b, "        '%s:%s'\n", cmd.name, cmd.desc)
	}
	b.WriteString(`    )

    _arguments -C \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
`)
	for _, cmd := range commands {
		fmt.Fprintf(&b, "                %s)\n", cmd.name)
		switch {
		case cmd.name == "completion":
			b.WriteString("                    _values 'shell' bash zsh fish\n")
		case cmd.ext != "":
			fmt.Fprintf(&b, "                    _arguments '*:file:_files -g \"*.(%s)\"' %s\n", cmd.ext, zshFlags(cmd.flags))
		default:
			fmt.Fprintf(&b, "                    _arguments %s\n", zshFlags(cmd.flags))
		}
		b.WriteString("                    ;;\n")
	}
	b.WriteString(`            esac
            ;;
    esac
}

_smithforge
`)
	_, err := io.WriteString(c.out, b.String())
	return err
}

func zshFlags(flags []string) string {
	parts := []string{"'(-h --help)'{-h,--help}'[Show help]'"}
	for _, f := range flags {
		parts = append(parts, "'"+f+"'")
	}
	return strings.Join(parts, " ")
}

func (c *CompletionCmd) generateFish() error {
	var b strings.Builder
	b.WriteString("# fish completion for smithforge\n\n")
	for _, cmd := range commands {
		fmt.Fprintf(&b, "complete -c smithforge -f -n \"__fish_use_subcommand\" -a \"%s\" -d \"%s\"\n", cmd.name, cmd.desc)
	}
	for _, cmd := range commands {
		fmt.Fprintf(&b, "\n# %s command options\n", cmd.name)
		for _, f := range cmd.flags {
			if strings.HasPrefix(f, "--") {
				fmt.Fprintf(&b, "complete -c smithforge -n \"__fish_seen_subcommand_from %s\" -l %s\n", cmd.name, strings.TrimPrefix(f, "--"))
			} else {
				fmt.Fprintf(&b, "complete -c smithforge -n \"__fish_seen_subcommand_from %s\" -s %s\n", cmd.name, strings.TrimPrefix(f, "-"))
			}
		}
		for _, ext := range strings.Split(cmd.ext, "|") {
			if ext == "" {
				continue
			}
			fmt.Fprintf(&b, "complete -c smithforge -n \"__fish_seen_subcommand_from %s\" -a \"(__fish_complete_suffix .%s)\"\n", cmd.name, ext)
		}
		if cmd.name == "completion" {
			b.WriteString("complete -c smithforge -f -n \"__fish_seen_subcommand_from completion\" -a \"bash zsh fish\"\n")
		}
	}
	_, err := io.WriteString(c.out, b.String())
	return err
}

func (c *CompletionCmd) Help() string {
	return `
Generate shell completion scripts for smithforge.

Examples:
  # Bash
  smithforge completion bash > ~/.local/share/bash-completion/completions/smithforge

  # Zsh
  smithforge completion zsh > ~/.zsh/completion/_smithforge

  # Fish
  smithforge completion fish > ~/.config/fish/completions/smithforge.fish
`
}
