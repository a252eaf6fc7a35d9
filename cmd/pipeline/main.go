package main

// @title OpenFoodFacts Brand Report API
// @version 1.0
// @description Runs the catalog brand report pipeline and serves its run history.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	Execute()
}
