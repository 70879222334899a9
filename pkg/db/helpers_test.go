package db

import "github.com/smallbiznis/teleload/internal/config"

func testConfig(dbType string) config.Config {
	return config.Config{
		DBType: dbType,
		DBHost: "localhost",
		DBPort: "5432",
		DBName: "teleload",
		DBUser: "postgres",
		DBPath: "file::memory:",
	}
}
