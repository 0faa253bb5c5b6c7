package main

// General API documentation for swaggo. The rendered document is served by
// the swagger build of internal/httpapi.
//
// @title           specd API
// @version         1.0
// @description     Spectrogram and ML model artifact store with TF.js to Keras conversion and inference.
//
// @contact.name   specd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
