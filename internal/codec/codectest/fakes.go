// Package codectest writes small POSIX shell stand-ins for the codec tools so
// gateways and sessions can be exercised without the real binaries.
//
// The fake encoder stores "GGWAVE:" followed by its stdin as the WAV. The fake
// decoder reports any file starting with that marker as a decoded message,
// prints a report but exits 1 for files starting with "MISS", and fails
// without output for files starting with "FAIL". The fake ffmpeg copies its
// input to its last argument unless the input starts with "BAD".
package codectest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lukasbauer/tonebridge/internal/codec"
)

const toFileScript = `#!/bin/sh
out=""
for a in "$@"; do
  case "$a" in
    -f*) out="${a#-f}" ;;
  esac
done
if [ -z "$out" ]; then
  echo "missing -f" >&2
  exit 2
fi
echo "$@" >> "$(dirname "$0")/to-file.args"
{ printf 'GGWAVE:'; cat; } > "$out"
`

const fromFileScript = `#!/bin/sh
content=$(cat "$1")
case "$content" in
  GGWAVE:*)
    msg=${content#GGWAVE:}
    echo "Analyzing captured data .."
    echo "Decoded message with length ${#msg}: '$msg'"
    ;;
  MISS*)
    echo "Analyzing captured data .."
    echo "No message decoded"
    exit 1
    ;;
  FAIL*)
    echo "failed to read wav" >&2
    exit 3
    ;;
  *)
    echo "Analyzing captured data .."
    echo "No message decoded"
    ;;
esac
`

// The interactive fake echoes every line back as a decoded report on stdout
// and a receive report on stderr. "quit" exits 7, "hang" sleeps.
const cliScript = `#!/bin/sh
echo "ggwave-cli ready $*"
while IFS= read -r line; do
  case "$line" in
    quit) exit 7 ;;
    hang) sleep 600 ;;
  esac
  echo "Decoded message with length ${#line}: '$line'"
  echo "Received sound data successfully: '$line'" >&2
done
`

const ffmpegScript = `#!/bin/sh
in=""
prev=""
last=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
  last="$a"
done
first=""
IFS= read -r first < "$in"
case "$first" in
  BAD*)
    echo "$in: Invalid data found when processing input" >&2
    exit 1
    ;;
esac
cp "$in" "$last"
`

// Write creates an executable script named name in dir and returns its path.
func Write(t testing.TB, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return p
}

// Tools installs all fakes in a fresh temp dir.
func Tools(t testing.TB) codec.Tools {
	t.Helper()
	dir := t.TempDir()
	return codec.Tools{
		ToFile:   Write(t, dir, "ggwave-to-file", toFileScript),
		FromFile: Write(t, dir, "ggwave-from-file", fromFileScript),
		CLI:      Write(t, dir, "ggwave-cli", cliScript),
		CLIArgs:  []string{"-t1"},
		FFmpeg:   Write(t, dir, "ffmpeg", ffmpegScript),
	}
}

// ToFileArgs returns the argument lines recorded by the fake encoder.
func ToFileArgs(t testing.TB, tools codec.Tools) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(filepath.Dir(tools.ToFile), "to-file.args"))
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	return string(b)
}
