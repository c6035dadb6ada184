package testutil

import (
	"os"

	"github.com/ethaccount/walletcore/src/utils"
	"github.com/joho/godotenv"
)

// GetEnv reads key after loading the project .env when one exists
func GetEnv(key string) string {
	if path, err := utils.ProjectPath(".env"); err == nil {
		_ = godotenv.Load(path)
	}
	return os.Getenv(key)
}
