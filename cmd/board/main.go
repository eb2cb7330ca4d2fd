// Command board 在终端中操作商机管道看板
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BerniceZTT/pipeline_end/apiclient"
	"github.com/BerniceZTT/pipeline_end/board"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	username  string
	password  string
	stageFlag string
	exportDir string
	logFile   string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "商机管道看板终端客户端",
	Long: `连接商机管道服务，按阶段展示看板。

按键:
  1-4 / tab  切换阶段        /  搜索          v  看板/表格
  方向键     选择卡片        H/L 移到前/后一列  a  进入下一阶段
  x          归档            enter 快速查看    e  导出CSV
  C          按联系人导出    n  新建商机        r  刷新
  q          退出

快速查看中按 e 进入编辑表单，销售阶段可增删回款，ctrl+s 保存。`,
	SilenceUsage: true,
	RunE:         runBoard,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", envOr("PIPELINE_SERVER", "http://localhost:8080"), "服务地址")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("PIPELINE_TOKEN"), "登录token")
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "用户名，未提供token时登录")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "密码")
	rootCmd.Flags().StringVar(&stageFlag, "stage", "", "初始阶段: prospect|proposal|leads|sales")
	rootCmd.Flags().StringVar(&exportDir, "export-dir", ".", "导出CSV的目录")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "日志文件，不设置时不输出日志")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "请求超时")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runBoard(cmd *cobra.Command, args []string) error {
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	utils.InitLoggerWithWriter(logOut, true)

	stage, err := service.ParseStage(stageFlag)
	if err != nil {
		return err
	}

	client := apiclient.New(serverURL, token, timeout)
	if token == "" {
		if username == "" {
			return fmt.Errorf("需要 --token 或 --username/--password")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		_, err := client.Login(ctx, username, password)
		cancel()
		if err != nil {
			return fmt.Errorf("登录失败: %w", err)
		}
	}

	m := newModel(cmd.Context(), board.New(client, stage), exportDir)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("运行看板失败: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
