package beans

import "context"

// Run 构建应用并运行，直到收到 SIGINT / SIGTERM 或某个托管服务失败
//
//	beans.Run(beans.NewApplicationBuilder().
//		ConfigureConfiguration(func(c *config.ConfigurationBuilder) { c.AddYamlFile("app.yaml") }).
//		Use(redis.Register, database.Starter(&User{}), web.Starter()).
//		AddHostedService(web.HostBean))
func Run(b *ApplicationBuilder) error {
	ctx := context.Background()

	app, err := b.Build(ctx)
	if err != nil {
		return err
	}
	return app.host.RunUntilSignal(ctx)
}
