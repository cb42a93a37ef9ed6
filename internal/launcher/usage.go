package launcher

import (
	"fmt"
	"io"
)

// PrintUsage writes the front-end usage shown after a session run with -h.
func PrintUsage(w io.Writer, version, prefix string) {
	fmt.Fprintf(w, "\ngqlplus version %s; usage: gqlplus [sqlplus_options] [-h] [-d] [-p] [--config file]\n", version)
	fmt.Fprintf(w, "      \"-h\" this message\n")
	fmt.Fprintf(w, "      \"-d\" disable column name completion\n")
	fmt.Fprintf(w, "      \"-p\" show progress report and elapsed time\n")
	fmt.Fprintf(w, "      \"--config\" read settings from file\n")
	fmt.Fprintf(w, "      SQL> %sr: rescan tables (for completion)\n", prefix)
	fmt.Fprintf(w, "      SQL> %sh: display command history\n", prefix)
	fmt.Fprintf(w, "To kill the program, use SIGQUIT (Ctrl-\\)\n")
}
