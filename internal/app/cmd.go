package app

import (
	"fmt"
	"io"
)

// Command はlearnhubの起動モード。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのHEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
	CommandHelp        Command = "help"
)

// commands はサブコマンドの一覧。Usageの表示順を兼ねる。
var commands = []struct {
	cmd     Command
	aliases []string
	summary string
}{
	{CommandServe, nil, "認証・プロフィール・進捗APIを提供するHTTPサーバーを起動する（既定）"},
	{CommandWorker, nil, "期限切れセッションを定期削除する（SESSION_STORE=postgresのみ）"},
	{CommandMigrate, nil, "データベースマイグレーションを適用して終了する"},
	{CommandHealthcheck, nil, "稼働中サーバーの/healthを確認する"},
	{CommandHelp, []string{"-h", "--help"}, "このヘルプを表示する"},
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数なしや未知のコマンドはCommandServeとして扱い、2番目以降の引数は見ない。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	for _, c := range commands {
		if args[0] == string(c.cmd) {
			return c.cmd
		}
		for _, alias := range c.aliases {
			if args[0] == alias {
				return c.cmd
			}
		}
	}
	return CommandServe
}

// Usage はサブコマンドの一覧をwに書き出す。
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: learnhub [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.summary)
	}
}
