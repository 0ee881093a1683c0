package app

import (
	"fmt"
	"sort"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はセッションクリーンアップのワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// commandDescriptions はサブコマンドと説明の対応表。
var commandDescriptions = map[Command]string{
	CommandServe:       "start the HTTP API server (default)",
	CommandWorker:      "purge expired and signed-out sessions periodically",
	CommandMigrate:     "apply database migrations",
	CommandHealthcheck: "probe /health on the local server",
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	cmd := Command(args[0])
	if _, ok := commandDescriptions[cmd]; !ok {
		return CommandServe
	}
	return cmd
}

// IsKnownCommand は引数の先頭がサポート済みのサブコマンドかどうかを返す。
func IsKnownCommand(args []string) bool {
	if len(args) == 0 {
		return true
	}
	_, ok := commandDescriptions[Command(args[0])]
	return ok
}

// Usage はサブコマンド一覧の説明文を返す。
func Usage() string {
	names := make([]string, 0, len(commandDescriptions))
	for cmd := range commandDescriptions {
		names = append(names, string(cmd))
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: quora <command>\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-12s %s\n", name, commandDescriptions[Command(name)])
	}
	return b.String()
}
