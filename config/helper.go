package config

// Load 加载并绑定指定节的配置到结构体 T，section 为空时绑定整个配置
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// LoadOrDefault 在 def 的基础上绑定配置节，配置中未出现的字段保留默认值
func LoadOrDefault[T any](cfg Configuration, section string, def T) (T, error) {
	if section != "" && !cfg.Exists(section) {
		return def, nil
	}
	t := def
	err := cfg.Bind(section, &t)
	return t, err
}
