package config

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadAndWatch 读取 config/{service}.yaml 到 out，并监听文件变更。
// onChange 在每次热更新成功后调用，可以为 nil。
func LoadAndWatch(service string, out interface{}, defaults map[string]interface{}, onChange func()) (*viper.Viper, error) {
	v, err := Load(service, out, defaults)
	if err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("[%s] config file changed: %s", service, e.Name)

		if err := v.Unmarshal(out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		log.Printf("[%s] config reloaded OK", service)
		if onChange != nil {
			onChange()
		}
	})

	return v, nil
}

// Load 只读取一次。defaults 的 key 用点号路径，例如 "pump.interval_ms"。
func Load(service string, out interface{}, defaults map[string]interface{}) (*viper.Viper, error) {
	// .env 不存在就只用系统环境变量
	_ = godotenv.Load()

	v := viper.New()
	// 约定：config/{service}.yaml
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	// 环境变量覆盖，例如 TICKERD_PUMP_SYMBOL 覆盖 pump.symbol
	v.SetEnvPrefix(strings.ToUpper(service))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}

	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())
	return v, nil
}
