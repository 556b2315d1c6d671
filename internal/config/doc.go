// Package config загружает настройки Remora.
//
// Источники, в порядке возрастания приоритета:
//   - значения по умолчанию (Default)
//   - YAML-файл (опционально, путь из --config)
//   - файл .env в текущей директории (опционально)
//   - переменные окружения REMORA_*
//
// Результат валидируется и отображается на client.Options.
package config
