package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/prediction --output domain/prediction --outpkg predictionmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name FixtureProvider --dir ../usecase --output usecase --outpkg usecasemock --filename fixture_provider_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name CycleLocker --dir ../usecase --output usecase --outpkg usecasemock --filename cycle_locker_mock.go
