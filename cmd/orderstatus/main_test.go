package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditActorPrecedence(t *testing.T) {
	orig := actor
	defer func() { actor = orig }()

	actor = "alice"
	assert.Equal(t, "alice", editActor())

	actor = ""
	os.Setenv("USER", "bob")
	defer os.Unsetenv("USER")
	assert.Equal(t, "bob", editActor())

	os.Unsetenv("USER")
	assert.Equal(t, "cli", editActor())
}

func TestCommandsRegistered(t *testing.T) {
	expected := []string{"import", "watch", "po", "plan", "bol", "serial", "queue", "audit"}
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "command %s not registered", name)
	}
}
