// Package fileopen implements the file-selected side effect (spec
// §4.F): spawning the configured open-file-command when a browser
// client asks to jump to a source location.
package fileopen

import (
	"log"
	"os/exec"
	"strconv"
)

// Argv builds the subprocess argv for command given fileName and
// fileLine. "emacsclient" is special-cased per spec §4.F; any other
// command receives [command, fileName, fileLine] verbatim.
func Argv(command, fileName string, fileLine int) []string {
	if command == "emacsclient" {
		return []string{"emacsclient", "-n", "+" + strconv.Itoa(fileLine), fileName}
	}
	return []string{command, fileName, strconv.Itoa(fileLine)}
}

// Open spawns the configured command, fire-and-forget: its exit is
// never awaited (spec §5). A missing command is a no-op. Spawn
// failures are logged and swallowed (spec §4.F, §7).
func Open(command, fileName string, fileLine int) {
	if command == "" {
		return
	}
	argv := Argv(command, fileName, fileLine)
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		log.Printf("fileopen: failed to spawn %v: %v", argv, err)
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("fileopen: %s exited with error: %v", argv[0], err)
		}
	}()
}
