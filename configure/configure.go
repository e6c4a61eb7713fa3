package configure

import (
	"github.com/gocrud/beans"
	"github.com/gocrud/beans/configure/database"
	"github.com/gocrud/beans/configure/etcd"
	"github.com/gocrud/beans/configure/mongodb"
	"github.com/gocrud/beans/configure/redis"
)

// DataSources 返回全部数据源 Starter（redis / mongodb / etcd / database）。
// 缺少对应配置节的 Starter 不注册任何 Bean，migrate 传给 database。
// 使用示例: builder.Use(configure.DataSources(&User{})...)
func DataSources(migrate ...any) []beans.Starter {
	return []beans.Starter{
		redis.Register,
		mongodb.Register,
		etcd.Register,
		database.Starter(migrate...),
	}
}
