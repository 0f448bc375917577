// Package docs provides generated OpenAPI documentation.
//
// Pagecast API
//
//	@title			Pagecast API
//	@version		1.0
//	@description	Accessible fixed-layout EPUB conversion API for managing conversion jobs.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/pagecast/pagecast
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/pagecast/serve.go -o ./swagger --parseDependency --parseInternal
