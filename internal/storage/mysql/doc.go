// Package mysql 封装 MySQL 连接池与 schema 迁移,
// 并提供 API Key 凭证的持久化存储.
package mysql
