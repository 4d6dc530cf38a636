package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/betalert/arbot/pkg/secretstore"
)

// 账号凭据写入工具：把庄家账号的用户名/密码写进 badger 凭据库，
// 主程序启动时只读引用，凭据永远不进配置文件。
//
// 用法:
//   arbot-secrets -db data/secrets set <username>        # 交互输入密码
//   arbot-secrets -db data/secrets check <username>      # 检查凭据是否存在
func main() {
	var (
		dbPath    = flag.String("db", getenv("ARBOT_SECRET_DB", "data/secrets"), "badger 凭据库目录")
		secretKey = flag.String("secret-key", getenv("ARBOT_SECRETSTORE_KEY", ""), "加密密钥（32 字节 base64/hex）")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
	}
	command, username := args[0], strings.TrimSpace(args[1])
	if username == "" {
		fatal(fmt.Errorf("用户名不能为空"))
	}

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fmt.Fprintln(os.Stderr, "警告: 未设置加密密钥，凭据库不加密")
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
		ReadOnly:      command == "check",
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	switch command {
	case "set":
		password, err := promptPassword(username)
		if err != nil {
			fatal(err)
		}
		if err := ss.SetCredentials(username, secretstore.Credentials{
			Username: username,
			Password: password,
		}); err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "已写入账号 %s 的凭据到 %s\n", username, *dbPath)
	case "check":
		_, found, err := ss.CredentialsFor(username)
		if err != nil {
			fatal(err)
		}
		if !found {
			fmt.Fprintf(os.Stderr, "账号 %s 没有凭据\n", username)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "账号 %s 凭据存在\n", username)
	default:
		usage()
	}
}

func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "账号 %s 的密码: ", username)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	// 非终端（管道）时按行读取
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "用法: arbot-secrets [-db 路径] [-secret-key 密钥] set|check <username>")
	os.Exit(2)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
